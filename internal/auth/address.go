package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/polkassembly/governance/internal/signature"
)

// parseAddress accepts an address encoded for the network itself or with
// the generic substrate prefix.
func (s *Service) parseAddress(network, address string) (Network, string, error) {
	n, ok := ParseNetwork(network)
	if !ok {
		return "", "", userInput(MsgInvalidNetwork)
	}
	key, prefix, err := signature.DecodeAddress(address)
	if err != nil {
		return "", "", userInput(MsgAddressInvalid)
	}
	if prefix != n.SS58Prefix() && prefix != signature.GenericPrefix {
		return "", "", userInput(MsgAddressInvalid)
	}
	return n, "0x" + hex.EncodeToString(key), nil
}

// AddressLinkStart attaches address to the user as an unverified row and
// hands out the challenge the wallet must sign.
func (s *Service) AddressLinkStart(ctx context.Context, userID int, network, address string) (ChallengeResult, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return ChallengeResult{}, err
	}
	address = strings.TrimSpace(address)
	n, pub, err := s.parseAddress(network, address)
	if err != nil {
		return ChallengeResult{}, err
	}

	verified, err := s.Addresses.FindVerified(ctx, address)
	if err != nil {
		return ChallengeResult{}, internal("find verified address", err)
	}
	if verified != nil {
		return ChallengeResult{}, userInput(MsgAddressAlreadyExists)
	}

	challenge := NewToken()
	existing, err := s.Addresses.FindForUser(ctx, userID, n, address)
	if err != nil {
		return ChallengeResult{}, internal("find address", err)
	}

	var id int
	if existing != nil {
		if err := s.Addresses.SetSignMessage(ctx, existing.ID, challenge); err != nil {
			return ChallengeResult{}, internal("store challenge", err)
		}
		id = existing.ID
	} else {
		created, err := s.Addresses.Create(ctx, Address{
			UserID:      userID,
			Network:     n,
			Address:     address,
			PublicKey:   pub,
			SignMessage: &challenge,
		})
		if err != nil {
			return ChallengeResult{}, internal("create address", err)
		}
		id = created.ID
	}

	return ChallengeResult{Message: MsgAddressLinkingStarted, AddressID: id, SignMessage: challenge}, nil
}

// AddressLinkConfirm verifies the signed challenge and marks the address
// verified. The returned token already carries the new address claims.
func (s *Service) AddressLinkConfirm(ctx context.Context, userID, addressID int, sig string) (TokenResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return TokenResult{}, err
	}

	addr, err := s.Addresses.FindByID(ctx, addressID)
	if err != nil {
		return TokenResult{}, internal("find address", err)
	}
	if addr == nil || addr.UserID != u.ID {
		return TokenResult{}, notFound(MsgAddressNotFound)
	}
	if addr.SignMessage == nil || *addr.SignMessage == "" {
		return TokenResult{}, forbidden(MsgAddressLinkingFailed)
	}
	if !s.Verifier.Verify(*addr.SignMessage, addr.Address, sig) {
		return TokenResult{}, forbidden(MsgAddressLinkingFailed)
	}

	all, err := s.Addresses.ListByUser(ctx, u.ID)
	if err != nil {
		return TokenResult{}, internal("list addresses", err)
	}
	makeDefault := true
	for _, a := range all {
		if a.Network == addr.Network && a.Default && a.Verified {
			makeDefault = false
			break
		}
	}

	verified, err := s.Addresses.FindVerified(ctx, addr.Address)
	if err != nil {
		return TokenResult{}, internal("find verified address", err)
	}
	if verified != nil && verified.ID != addr.ID {
		return TokenResult{}, userInput(MsgAddressAlreadyExists)
	}

	ok, err := s.Addresses.MarkVerified(ctx, addr.ID, *addr.SignMessage, makeDefault)
	if errors.Is(err, ErrAddressTaken) {
		return TokenResult{}, userInput(MsgAddressAlreadyExists)
	}
	if err != nil {
		return TokenResult{}, internal("verify address", err)
	}
	if !ok {
		return TokenResult{}, forbidden(MsgAddressLinkingFailed)
	}

	s.audit(ctx, AuditAddressLinked, u.ID, map[string]interface{}{"address": addr.Address, "network": string(addr.Network)})

	token, err := s.accessToken(ctx, u)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{Message: MsgAddressLinkingSuccessful, Token: token}, nil
}

// AddressLoginStart issues a login challenge for an already verified address.
func (s *Service) AddressLoginStart(ctx context.Context, address string) (ChallengeResult, error) {
	address = strings.TrimSpace(address)
	addr, err := s.Addresses.FindVerified(ctx, address)
	if err != nil {
		return ChallengeResult{}, internal("find verified address", err)
	}
	if addr == nil {
		return ChallengeResult{}, notFound(MsgAddressNotFound)
	}

	challenge := NewToken()
	if err := s.Tokens.Put(ctx, TokenAddressLogin, address, challenge, AddressLoginTTL); err != nil {
		return ChallengeResult{}, internal("store challenge", err)
	}
	return ChallengeResult{Message: MsgAddressLoginStarted, AddressID: addr.ID, SignMessage: challenge}, nil
}

// AddressLogin exchanges a signature over the pending challenge for a
// session. The challenge is consumed only on success, and only once.
func (s *Service) AddressLogin(ctx context.Context, address, sig string) (Session, error) {
	address = strings.TrimSpace(address)
	challenge, ok, err := s.Tokens.Peek(ctx, TokenAddressLogin, address)
	if err != nil {
		return Session{}, internal("read challenge", err)
	}
	if !ok {
		return Session{}, forbidden(MsgAddressLoginExpired)
	}
	if !s.Verifier.Verify(challenge, address, sig) {
		return Session{}, forbidden(MsgAddressLoginInvalidSig)
	}

	addr, err := s.Addresses.FindVerified(ctx, address)
	if err != nil {
		return Session{}, internal("find verified address", err)
	}
	if addr == nil {
		return Session{}, notFound(MsgAddressNotFound)
	}

	taken, err := s.Tokens.TakeIfEqual(ctx, TokenAddressLogin, address, challenge)
	if err != nil {
		return Session{}, internal("consume challenge", err)
	}
	if !taken {
		return Session{}, forbidden(MsgAddressLoginExpired)
	}

	u, err := s.requireUser(ctx, addr.UserID)
	if err != nil {
		return Session{}, err
	}
	s.audit(ctx, AuditAddressLogin, u.ID, map[string]interface{}{"address": address})
	return s.completeLogin(ctx, u)
}

// AddressSignupStart issues a challenge for creating an account from an
// address nobody has verified yet.
func (s *Service) AddressSignupStart(ctx context.Context, address string) (ChallengeResult, error) {
	address = strings.TrimSpace(address)
	if _, err := signature.PublicKeyHex(address); err != nil {
		return ChallengeResult{}, userInput(MsgAddressInvalid)
	}
	existing, err := s.Addresses.FindVerified(ctx, address)
	if err != nil {
		return ChallengeResult{}, internal("find verified address", err)
	}
	if existing != nil {
		return ChallengeResult{}, userInput(MsgAddressAlreadyExists)
	}

	challenge := NewToken()
	if err := s.Tokens.Put(ctx, TokenAddressSignup, address, challenge, AddressSignupTTL); err != nil {
		return ChallengeResult{}, internal("store challenge", err)
	}
	return ChallengeResult{Message: MsgAddressSignupStarted, SignMessage: challenge}, nil
}

// AddressSignupConfirm creates a passwordless account owning address as its
// verified default.
func (s *Service) AddressSignupConfirm(ctx context.Context, network, address, sig string) (Session, error) {
	address = strings.TrimSpace(address)
	n, pub, err := s.parseAddress(network, address)
	if err != nil {
		return Session{}, err
	}

	challenge, ok, err := s.Tokens.Peek(ctx, TokenAddressSignup, address)
	if err != nil {
		return Session{}, internal("read challenge", err)
	}
	if !ok {
		return Session{}, forbidden(MsgAddressSignupExpired)
	}
	if !s.Verifier.Verify(challenge, address, sig) {
		return Session{}, forbidden(MsgAddressSignupInvalidSig)
	}

	existing, err := s.Addresses.FindVerified(ctx, address)
	if err != nil {
		return Session{}, internal("find verified address", err)
	}
	if existing != nil {
		return Session{}, userInput(MsgAddressAlreadyExists)
	}

	taken, err := s.Tokens.TakeIfEqual(ctx, TokenAddressSignup, address, challenge)
	if err != nil {
		return Session{}, internal("consume challenge", err)
	}
	if !taken {
		return Session{}, forbidden(MsgAddressSignupExpired)
	}

	u, err := s.Users.Create(ctx, NewUser{Username: generatedUsername(), Web3Signup: true})
	if err != nil {
		return Session{}, internal("create user", err)
	}
	if _, err := s.Addresses.Create(ctx, Address{
		UserID:    u.ID,
		Network:   n,
		Address:   address,
		PublicKey: pub,
		Verified:  true,
		Default:   true,
	}); err != nil {
		if derr := s.Users.Delete(ctx, u.ID); derr != nil {
			s.logger().Error("rollback web3 signup failed", "user_id", u.ID, "error", derr)
		}
		if errors.Is(err, ErrAddressTaken) {
			return Session{}, userInput(MsgAddressAlreadyExists)
		}
		return Session{}, internal("create address", err)
	}

	s.audit(ctx, AuditSignup, u.ID, map[string]interface{}{"address": address, "web3": true})
	return s.startSession(ctx, u)
}

// AddressUnlink removes one of the user's addresses.
func (s *Service) AddressUnlink(ctx context.Context, userID int, address string) (TokenResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return TokenResult{}, err
	}
	addr, err := s.ownedAddress(ctx, u.ID, address)
	if err != nil {
		return TokenResult{}, err
	}
	if err := s.Addresses.Delete(ctx, addr.ID); err != nil {
		return TokenResult{}, internal("delete address", err)
	}

	s.audit(ctx, AuditAddressUnlinked, u.ID, map[string]interface{}{"address": addr.Address})

	token, err := s.accessToken(ctx, u)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{Message: MsgAddressUnlinkingSuccess, Token: token}, nil
}

// SetDefaultAddress makes a verified address the default of its network.
func (s *Service) SetDefaultAddress(ctx context.Context, userID int, address string) (TokenResult, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return TokenResult{}, err
	}
	addr, err := s.ownedAddress(ctx, u.ID, address)
	if err != nil {
		return TokenResult{}, err
	}
	if !addr.Verified {
		return TokenResult{}, notFound(MsgAddressNotFound)
	}
	if err := s.Addresses.SetDefault(ctx, u.ID, addr.Network, addr.ID); err != nil {
		return TokenResult{}, internal("set default address", err)
	}

	token, err := s.accessToken(ctx, u)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{Message: MsgAddressDefaultSuccess, Token: token}, nil
}

func (s *Service) ownedAddress(ctx context.Context, userID int, address string) (*Address, error) {
	address = strings.TrimSpace(address)
	all, err := s.Addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, internal("list addresses", err)
	}
	for i := range all {
		if all[i].Address == address {
			return &all[i], nil
		}
	}
	return nil, notFound(MsgAddressNotFound)
}

// completeLogin either opens a session or parks the login behind a second
// factor.
func (s *Service) completeLogin(ctx context.Context, u *User) (Session, error) {
	if !u.TFAEnabled {
		return s.startSession(ctx, u)
	}
	pending := NewToken()
	if err := s.Tokens.Put(ctx, TokenTwoFactorLogin, pending, strconv.Itoa(u.ID), TwoFactorLoginTTL); err != nil {
		return Session{}, internal("store two factor token", err)
	}
	return Session{UserID: u.ID, TFARequired: true, TFAToken: pending}, nil
}

func generatedUsername() string {
	return strings.ReplaceAll(NewToken(), "-", "")[:25]
}
