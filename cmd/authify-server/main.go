// Command authify-server runs the standalone auth service backed by
// Postgres, with the auth surface mounted under /api/auth.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	gormlib "gorm.io/gorm"

	"github.com/authify-dev/authify"
	oauth "github.com/authify-dev/authify/oauth2"
	gormstore "github.com/authify-dev/authify/stores/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on environment")
	}
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s must be set", key)
	}
	return v, nil
}

func run() error {
	accessSecret, err := requireEnv("ACCESS_TOKEN_SECRET")
	if err != nil {
		return err
	}
	refreshSecret, err := requireEnv("REFRESH_TOKEN_SECRET")
	if err != nil {
		return err
	}
	databaseURL, err := requireEnv("DATABASE_URL")
	if err != nil {
		return err
	}

	port := getenv("PORT", "3000")
	clientURL := getenv("CLIENT_URL", "http://localhost:5173")
	serverURL := getenv("SERVER_URL", "http://localhost:"+port)
	production := getenv("APP_ENV", "development") == "production"

	db, err := gormlib.Open(postgres.Open(databaseURL), &gormlib.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	store := gormstore.NewUserStore(db)

	tokens, err := authify.NewTokenIssuer(accessSecret, refreshSecret)
	if err != nil {
		return err
	}

	session := scs.New()
	session.Lifetime = 24 * time.Hour
	session.Cookie.HttpOnly = true
	session.Cookie.Secure = production
	session.Cookie.SameSite = http.SameSiteStrictMode

	resolver := &authify.IdentityResolver{
		Store:  store,
		Hasher: authify.PasswordHasher{},
	}
	svc := &authify.AuthService{
		Resolver:           resolver,
		Tokens:             tokens,
		Session:            session,
		Notifier:           &authify.ConsoleOTPNotifier{},
		ClientURL:          clientURL,
		SecureCookies:      production,
		GithubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GithubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
	}
	guard := &authify.Middleware{Tokens: tokens, Store: store, Session: session}

	cfg := authify.RouterConfig{Service: svc, Guard: guard}

	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		google := oauth.NewGoogle(
			id,
			os.Getenv("GOOGLE_CLIENT_SECRET"),
			serverURL+"/api/auth/google/callback",
			completeFor(svc, authify.ProviderGoogle),
			svc.OAuthFailureURL(authify.ProviderGoogle),
		)
		cfg.Google = http.HandlerFunc(google.HandleBegin)
		cfg.GoogleCallback = http.HandlerFunc(google.HandleCallback)
	}
	if id := os.Getenv("GITHUB_CLIENT_ID"); id != "" {
		github := oauth.NewGithub(
			id,
			os.Getenv("GITHUB_CLIENT_SECRET"),
			serverURL+"/api/auth/github/callback",
			completeFor(svc, authify.ProviderGithub),
			svc.OAuthFailureURL(authify.ProviderGithub),
		)
		cfg.Github = http.HandlerFunc(github.HandleBegin)
		cfg.GithubCallback = http.HandlerFunc(github.HandleCallback)
	}

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", authify.NewRouter(cfg)))
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		authify.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	slog.Info("starting auth server", "port", port, "clientURL", clientURL)
	return http.ListenAndServe(":"+port, session.LoadAndSave(root))
}

// completeFor adapts a provider completion into the service's OAuth
// success path.
func completeFor(svc *authify.AuthService, provider authify.Provider) oauth.CompleteFunc {
	return func(w http.ResponseWriter, r *http.Request, c oauth.Completion) {
		profile := authify.OAuthProfile{
			ProviderID: c.ProviderID,
			Name:       c.Name,
			Email:      c.Email,
			AvatarURL:  c.AvatarURL,
		}
		providerToken := ""
		if c.Token != nil {
			providerToken = c.Token.AccessToken
		}
		svc.CompleteOAuth(w, r, provider, profile, providerToken)
	}
}
