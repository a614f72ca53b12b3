package commands

import (
	"context"
	"fmt"

	"cinder/internal/api"
	"cinder/internal/config"
	"cinder/internal/content"
	"cinder/internal/storage"
)

// Login authenticates against the API, persists the session locally and
// wipes any swipe notifications left over from a previously logged-in
// identity.
func Login(ctx context.Context, cfg *config.Config, username, password string) error {
	if err := content.ValidateUsername(username); err != nil {
		return err
	}

	client := api.NewClient(ctx, cfg.APIBaseURL)
	resp, err := client.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %w. Is the server reachable?", err)
	}

	store, err := storage.NewLocalStore(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	prevUserID, _, err := store.LoadSession()
	if err == nil && prevUserID != "" && prevUserID != resp.UserID {
		if err := store.ClearUser(prevUserID); err != nil {
			return fmt.Errorf("failed to clear previous user's local data: %w", err)
		}
	}

	if err := store.SaveSession(resp.UserID, resp.Token); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	fmt.Printf("\nLogged in as %s (user id %s)\n", username, resp.UserID)
	return nil
}

// Logout removes the persisted session and the identity's local swipe
// notifications.
func Logout(cfg *config.Config) error {
	store, err := storage.NewLocalStore(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	userID, _, err := store.LoadSession()
	if err != nil {
		fmt.Println("No active session.")
		return nil
	}

	if err := store.ClearUser(userID); err != nil {
		return err
	}
	if err := store.DeleteSession(); err != nil {
		return err
	}

	fmt.Println("Logged out.")
	return nil
}
