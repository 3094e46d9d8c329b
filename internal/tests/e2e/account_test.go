//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/devlink/apiserver/config"
	"github.com/devlink/apiserver/internal/db"
	"github.com/devlink/apiserver/internal/server"
	"github.com/devlink/apiserver/internal/store"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setEnv()
	cfg := config.LoadConfig()

	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := db.MigrateUp(db.URL(cfg.Database)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := server.New(ctx, cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)), server.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = dockerCompose(context.Background(), root, "down")
	}

	if err := waitForHealth(ctx, baseURL()+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		shutdown()
		os.Exit(1)
	}

	code := m.Run()

	shutdown()
	os.Exit(code)
}

func TestAccountLifecycle(t *testing.T) {
	email := fmt.Sprintf("dev_%d@example.com", time.Now().UnixNano())
	token := registerUser(t, email)

	var profile struct {
		Skills []string `json:"skills"`
	}
	status, raw := call(t, http.MethodPost, "/profile", token, map[string]string{
		"status": "Developer",
		"skills": "node, react",
	}, &profile)
	if status != http.StatusOK {
		t.Fatalf("create profile status %d: %s", status, raw)
	}
	if strings.Join(profile.Skills, "|") != "node|react" {
		t.Fatalf("unexpected skills: %v", profile.Skills)
	}

	if status, raw := call(t, http.MethodPost, "/posts", token, map[string]string{"text": "hello"}, nil); status != http.StatusOK {
		t.Fatalf("create post status %d: %s", status, raw)
	}

	if status, raw := call(t, http.MethodDelete, "/profile", token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete account status %d: %s", status, raw)
	}

	if status, raw := call(t, http.MethodGet, "/profile/me", token, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for deleted profile, got %d: %s", status, raw)
	}

	var gone struct {
		Error string `json:"error"`
	}
	if status, raw := call(t, http.MethodGet, "/auth", token, nil, &gone); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deleted user, got %d: %s", status, raw)
	}
	if gone.Error != "User no longer exists" {
		t.Fatalf("unexpected error message: %q", gone.Error)
	}
}

func TestAccountDeletionRollsBackOnFailure(t *testing.T) {
	token := registerUser(t, fmt.Sprintf("rollback_%d@example.com", time.Now().UnixNano()))

	var me struct {
		ID string `json:"id"`
	}
	if status, raw := call(t, http.MethodGet, "/auth", token, nil, &me); status != http.StatusOK {
		t.Fatalf("auth status %d: %s", status, raw)
	}
	if status, raw := call(t, http.MethodPost, "/profile", token, map[string]string{
		"status": "Developer",
		"skills": "go",
	}, nil); status != http.StatusOK {
		t.Fatalf("create profile status %d: %s", status, raw)
	}
	if status, raw := call(t, http.MethodPost, "/posts", token, map[string]string{"text": "keep me"}, nil); status != http.StatusOK {
		t.Fatalf("create post status %d: %s", status, raw)
	}

	conn, err := sql.Open("postgres", db.URL(config.LoadConfig().Database))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	// Holding the profile row lock lets the posts delete succeed and makes
	// the profile delete wait until the deadline aborts the transaction.
	locker, err := conn.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin locking tx: %v", err)
	}
	defer func() { _ = locker.Rollback() }()
	if _, err := locker.Exec(`SELECT id FROM profiles WHERE user_id = $1 FOR UPDATE`, me.ID); err != nil {
		t.Fatalf("lock profile: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := store.NewAccountRepository(conn).DeleteAccount(ctx, me.ID); err == nil {
		t.Fatalf("expected account deletion to fail while the profile is locked")
	}
	if err := locker.Rollback(); err != nil {
		t.Fatalf("release profile lock: %v", err)
	}

	var posts, profiles, users int
	if err := conn.QueryRow(`SELECT count(*) FROM posts WHERE user_id = $1`, me.ID).Scan(&posts); err != nil {
		t.Fatalf("count posts: %v", err)
	}
	if err := conn.QueryRow(`SELECT count(*) FROM profiles WHERE user_id = $1`, me.ID).Scan(&profiles); err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if err := conn.QueryRow(`SELECT count(*) FROM users WHERE id = $1`, me.ID).Scan(&users); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if posts != 1 || profiles != 1 || users != 1 {
		t.Fatalf("expected nothing removed, got posts=%d profiles=%d users=%d", posts, profiles, users)
	}

	if status, raw := call(t, http.MethodGet, "/profile/me", token, nil, nil); status != http.StatusOK {
		t.Fatalf("profile should survive failed deletion, got %d: %s", status, raw)
	}
}

func TestConcurrentLikesAreNotLost(t *testing.T) {
	author := registerUser(t, fmt.Sprintf("author_%d@example.com", time.Now().UnixNano()))

	var post struct {
		ID string `json:"id"`
	}
	if status, raw := call(t, http.MethodPost, "/posts", author, map[string]string{"text": "like me"}, &post); status != http.StatusOK {
		t.Fatalf("create post status %d: %s", status, raw)
	}

	const likers = 8
	tokens := make([]string, likers)
	for i := range tokens {
		tokens[i] = registerUser(t, fmt.Sprintf("liker_%d_%d@example.com", i, time.Now().UnixNano()))
	}

	var wg sync.WaitGroup
	statuses := make([]int, likers)
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			statuses[i], _ = call(t, http.MethodPut, "/posts/like/"+post.ID, token, nil, nil)
		}(i, token)
	}
	wg.Wait()

	for i, status := range statuses {
		if status != http.StatusOK {
			t.Fatalf("like %d returned status %d", i, status)
		}
	}

	var fetched struct {
		Likes []json.RawMessage `json:"likes"`
	}
	if status, raw := call(t, http.MethodGet, "/posts/"+post.ID, author, nil, &fetched); status != http.StatusOK {
		t.Fatalf("get post status %d: %s", status, raw)
	}
	if len(fetched.Likes) != likers {
		t.Fatalf("expected %d likes, got %d", likers, len(fetched.Likes))
	}
}

func registerUser(t *testing.T, email string) string {
	t.Helper()

	var parsed struct {
		Token string `json:"token"`
	}
	status, raw := call(t, http.MethodPost, "/users", "", map[string]string{
		"name":     "Test Dev",
		"email":    email,
		"password": "testpass123!",
	}, &parsed)
	if status != http.StatusOK {
		t.Fatalf("register status %d: %s", status, raw)
	}
	if parsed.Token == "" {
		t.Fatalf("missing token in register response")
	}
	return parsed.Token
}

// call sends payload as JSON and decodes a 200 response into out.
func call(t *testing.T, method, path, token string, payload any, out any) (int, string) {
	t.Helper()

	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Errorf("marshal payload: %v", err)
			return 0, ""
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL()+path, body)
	if err != nil {
		t.Errorf("build request: %v", err)
		return 0, ""
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("%s %s: %v", method, path, err)
		return 0, ""
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("read body: %v", err)
		return resp.StatusCode, ""
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Errorf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode, strings.TrimSpace(string(data))
}

func baseURL() string {
	return fmt.Sprintf("http://localhost:%d", serverPort)
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "devlink")
	_ = os.Setenv("DB_PASSWORD", "devlink")
	_ = os.Setenv("DB_NAME", "devlink")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "none")
	_ = os.Setenv("MQ_BACKEND", "none")
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	conn, err := sql.Open("postgres", db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
