package auth

import (
	"strings"
	"time"
)

type Network string

const (
	NetworkKumandra Network = "kumandra"
	NetworkSelendra Network = "selendra"
)

var networkPrefixes = map[Network]uint16{
	NetworkKumandra: 2,
	NetworkSelendra: 204,
}

// Networks returns the supported networks in a stable order.
func Networks() []Network {
	return []Network{NetworkKumandra, NetworkSelendra}
}

func ParseNetwork(s string) (Network, bool) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	_, ok := networkPrefixes[n]
	return n, ok
}

// SS58Prefix is the address prefix wallets use for the network.
func (n Network) SS58Prefix() uint16 {
	return networkPrefixes[n]
}

type Role string

const (
	RoleAnonymous   Role = "anonymous"
	RoleAdmin       Role = "admin"
	RoleProposalBot Role = "proposal_bot"
	RoleUser        Role = "user"
	RoleEventBot    Role = "event_bot"
)

type User struct {
	ID            int
	Username      string
	Email         string
	EmailVerified bool
	PasswordHash  string
	Salt          string
	Web3Signup    bool
	TFASecret     *string
	TFAEnabled    bool
	CreatedAt     time.Time
}

// HasPassword is false for accounts created through an address signature.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

type Address struct {
	ID          int
	UserID      int
	Network     Network
	Address     string
	PublicKey   string
	SignMessage *string
	Verified    bool
	Default     bool
	CreatedAt   time.Time
}

type UndoEmailChangeToken struct {
	ID        int
	UserID    int
	Email     string
	Token     string
	Valid     bool
	CreatedAt time.Time
}

type ContentReport struct {
	ID        int
	Network   Network
	Type      string
	ContentID string
	Reason    string
	Comments  string
	UserID    int
	CreatedAt time.Time
}
