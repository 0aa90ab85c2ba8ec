package helpers

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes the plain text password using bcrypt
func HashPassword(plain string) (string, error) {
	return HashPasswordCost(plain, bcrypt.DefaultCost)
}

// HashPasswordCost is HashPassword with an explicit bcrypt cost.
func HashPasswordCost(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CompareHashAndPassword compares a bcrypt hash with a plain password
func CompareHashAndPassword(hash string, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// BcryptHasher adapts the bcrypt helpers to application.PasswordHasher.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	if h.Cost == 0 {
		return HashPassword(plain)
	}
	return HashPasswordCost(plain, h.Cost)
}

func (h BcryptHasher) Verify(plain, hash string) bool {
	return CompareHashAndPassword(hash, plain)
}
