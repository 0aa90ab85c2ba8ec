// Package search keeps public user fields in Elasticsearch for channel search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
)

const defaultSize = 10

type UserIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewUserIndex(es *elasticsearch.Client, index string) *UserIndex {
	return &UserIndex{es: es, index: index}
}

// document is what gets stored; never includes email or secrets.
type document struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatar"`
}

// IndexUser upserts u by id.
func (x *UserIndex) IndexUser(ctx context.Context, u *entity.User) error {
	body, err := json.Marshal(document{ID: u.ID, Username: u.Username, FullName: u.FullName, AvatarURL: u.AvatarURL})
	if err != nil {
		return err
	}
	res, err := x.es.Index(x.index, bytes.NewReader(body),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithDocumentID(u.ID),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index", res.StatusCode, res.Body)
	}
	return nil
}

// SearchUsers matches q against username and full name.
func (x *UserIndex) SearchUsers(ctx context.Context, q string, size int) ([]entity.UserSummary, error) {
	if size <= 0 || size > 50 {
		size = defaultSize
	}
	query := map[string]any{
		"size": size,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":    strings.TrimSpace(q),
				"fields":   []string{"username^2", "fullName"},
				"type":     "bool_prefix",
				"operator": "and",
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res.StatusCode, res.Body)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	out := make([]entity.UserSummary, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, entity.UserSummary{
			ID:        h.Source.ID,
			FullName:  h.Source.FullName,
			Username:  h.Source.Username,
			AvatarURL: h.Source.AvatarURL,
		})
	}
	return out, nil
}

func responseError(op string, status int, body io.Reader) error {
	b, _ := io.ReadAll(io.LimitReader(body, 512))
	return fmt.Errorf("elasticsearch %s: status %d: %s", op, status, strings.TrimSpace(string(b)))
}
