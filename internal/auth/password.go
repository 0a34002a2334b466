package auth

import "golang.org/x/crypto/bcrypt"

const MinPasswordLength = 6

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// BcryptHasher embeds the salt in the hash, so the users.salt column is
// written empty for new accounts.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

func (b *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *BcryptHasher) Compare(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// checkPassword enforces the current-password check guarding account
// changes. Accounts created by address signature have no password yet and
// pass with an empty one.
func checkPassword(h PasswordHasher, u *User, password string) bool {
	if !u.HasPassword() {
		return u.Web3Signup && password == ""
	}
	return h.Compare(u.PasswordHash, password)
}
