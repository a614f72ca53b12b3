package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cinder/internal/api"
	"cinder/internal/chat"
	"cinder/internal/commands"
	"cinder/internal/config"
	"cinder/internal/feed"
	"cinder/internal/media"
	"cinder/internal/models"
	"cinder/internal/notify"
	"cinder/internal/storage"
	"cinder/internal/ws"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	loginUser := flag.String("login", "", "Username to log in as (password is read from stdin)")
	logout := flag.Bool("logout", false, "Drop the stored session and local data")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if *loginUser != "" {
		password, err := readPassword()
		if err != nil {
			return err
		}
		return commands.Login(ctx, cfg, *loginUser, password)
	}

	if *logout {
		return commands.Logout(cfg)
	}

	store, err := storage.NewLocalStore(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	userID, token, err := store.LoadSession()
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("no session found, run with -login first")
		}
		return err
	}

	client := api.NewClient(ctx, cfg.APIBaseURL)
	client.SetToken(token)

	avatars, err := media.NewCache(filepath.Join(filepath.Dir(cfg.DBFile), "avatars"))
	if err != nil {
		return err
	}

	manager := ws.NewManager(ws.Config{
		URL:               cfg.WSURL,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	})

	notifications := notify.NewStore(client, manager, avatars)
	notifications.Bind(ctx, userID)
	defer notifications.Close()

	chatSync := chat.NewSynchronizer(client, chat.Config{
		UserID:        userID,
		AlertDuration: cfg.AlertDuration,
		RefreshDelay:  cfg.RefreshDelay,
		Notifier:      chat.SystemNotifier{},
	})
	if err := chatSync.RefreshConversations(ctx); err != nil {
		log.Printf("Initial conversation fetch failed: %v", err)
	}

	posts := feed.New(client)
	deck := feed.NewDeck(client, store, userID)
	if err := posts.LoadMore(ctx); err != nil {
		log.Printf("Initial feed fetch failed: %v", err)
	}
	if err := deck.LoadMore(ctx); err != nil {
		log.Printf("Initial matches fetch failed: %v", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Periodic consistency correction: the socket is best-effort, canonical
	// notification state is re-fetched on an interval.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				notifications.Refresh(gCtx)
				notifications.RefreshUnread(gCtx)
				log.Printf("Notifications: %d total, %d unread (connected=%v)",
					len(notifications.Notifications()), notifications.Unread(), manager.IsConnected())
			case <-gCtx.Done():
				return nil
			}
		}
	})

	// Chat poll loop: refreshes the active thread so background sends from
	// the other side surface as new-message alerts.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, ok := chatSync.Selected(); ok {
					if err := chatSync.RefreshCurrent(gCtx); err != nil {
						log.Printf("Chat refresh failed: %v", err)
					}
				} else if err := chatSync.RefreshConversations(gCtx); err != nil {
					log.Printf("Conversation refresh failed: %v", err)
				}
			case <-gCtx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down...")
		return nil
	})

	return g.Wait()
}

func readPassword() (string, error) {
	fmt.Print("Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
