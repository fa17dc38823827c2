package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/titaev-lv/keyguard-service/internal/enforce"
	"github.com/titaev-lv/keyguard-service/internal/hsm"
)

// tokenMintCommand builds a hardware auth token and MACs it with the
// shared secret. Intended for test and staging environments where no real
// authenticator service is available.
func tokenMintCommand(args []string) error {
	fs := flag.NewFlagSet("token-mint", flag.ExitOnError)
	keyFile := fs.String("key-file", "", "path to the raw HMAC key file")
	challenge := fs.Uint64("challenge", 0, "operation handle to bind the token to")
	userID := fs.Uint64("user-id", 0, "secure user identity")
	authenticatorID := fs.Uint64("authenticator-id", 0, "authenticator/enrollment identity")
	authType := fs.Uint64("auth-type", uint64(enforce.AuthTypePassword), "authenticator type bitmask")
	timestamp := fs.Uint64("timestamp", 0, "token timestamp (seconds since boot)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *keyFile == "" {
		return fmt.Errorf("-key-file is required")
	}
	authority, err := hsm.LoadSoftVerifier(*keyFile)
	if err != nil {
		return err
	}
	defer authority.Close()

	token := &enforce.AuthToken{
		Version:           enforce.AuthTokenVersion,
		Challenge:         *challenge,
		UserID:            *userID,
		AuthenticatorID:   *authenticatorID,
		AuthenticatorType: uint32(*authType),
		Timestamp:         *timestamp,
	}

	raw := token.Encode()
	mac, err := authority.SignToken(raw[:enforce.AuthTokenMACOffset])
	if err != nil {
		return err
	}
	copy(raw[enforce.AuthTokenMACOffset:], mac)

	fmt.Println(base64.StdEncoding.EncodeToString(raw))
	return nil
}

// tokenInspectCommand decodes a base64 token and prints its fields. The
// MAC is printed but not verified; inspection needs no secret.
func tokenInspectCommand(args []string) error {
	fs := flag.NewFlagSet("token-inspect", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: keyguard-admin token-inspect <base64-token>")
	}

	raw, err := base64.StdEncoding.DecodeString(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid base64: %w", err)
	}

	token, err := enforce.DecodeAuthToken(raw)
	if err != nil {
		return err
	}

	fmt.Printf("version:            %d\n", token.Version)
	fmt.Printf("challenge:          %d\n", token.Challenge)
	fmt.Printf("user_id:            %d\n", token.UserID)
	fmt.Printf("authenticator_id:   %d\n", token.AuthenticatorID)
	fmt.Printf("authenticator_type: 0x%08x\n", token.AuthenticatorType)
	fmt.Printf("timestamp:          %d\n", token.Timestamp)
	fmt.Printf("mac:                %x\n", token.MAC)
	return nil
}

// keyIDCommand derives the usage-table key identifier for a key blob.
func keyIDCommand(args []string) error {
	fs := flag.NewFlagSet("keyid", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: keyguard-admin keyid <key-blob-file>")
	}

	material, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read key blob: %w", err)
	}

	keyID := enforce.CreateKeyID(material)
	fmt.Printf("%d (0x%016x)\n", uint64(keyID), uint64(keyID))
	return nil
}
