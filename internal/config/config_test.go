package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("server.address = %q", cfg.Server.Address)
	}
	if cfg.JWT.Expiration != time.Hour {
		t.Errorf("jwt.expiration = %v, want 1h", cfg.JWT.Expiration)
	}
	if cfg.Billing.DefaultDueDay != 5 || cfg.Billing.DefaultMonthsAhead != 3 {
		t.Errorf("billing = %+v", cfg.Billing)
	}
	if cfg.Schedule.DefaultWeeks != 4 || cfg.Schedule.SessionMinutes != 60 {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.AMQP.Queue != "formafit.events" {
		t.Errorf("amqp.queue = %q", cfg.AMQP.Queue)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("server:\n  address: \":9090\"\nbilling:\n  default_due_day: 10\ns3:\n  bucket_name: from-file\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_ADDRESS", ":7070")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRATION", "90m")
	t.Setenv("AUTH_ADMIN_EMAILS", "Boss@Example.com, owner@example.com")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Address != ":7070" {
		t.Errorf("env should override file: address = %q", cfg.Server.Address)
	}
	if cfg.Billing.DefaultDueDay != 10 {
		t.Errorf("file should override default: due day = %d", cfg.Billing.DefaultDueDay)
	}
	if cfg.S3.BucketName != "from-file" {
		t.Errorf("bucket = %q", cfg.S3.BucketName)
	}
	if cfg.JWT.Secret != "s3cret" || cfg.JWT.Expiration != 90*time.Minute {
		t.Errorf("jwt = %+v", cfg.JWT)
	}
	want := []string{"boss@example.com", "owner@example.com"}
	if !reflect.DeepEqual(cfg.Auth.AdminEmails, want) {
		t.Errorf("admin emails = %q, want %q", cfg.Auth.AdminEmails, want)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MAIL_FROM=Coach <coach@example.com>\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides a variable that is already set, so make sure
	// it is unset and restored afterwards.
	t.Setenv("MAIL_FROM", "")
	os.Unsetenv("MAIL_FROM")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mail.From != "Coach <coach@example.com>" {
		t.Errorf("mail.from = %q", cfg.Mail.From)
	}
}

func TestServerLocation(t *testing.T) {
	if loc := (ServerConfig{}).Location(); loc != time.UTC {
		t.Errorf("empty timezone = %v, want UTC", loc)
	}
	if loc := (ServerConfig{Timezone: "Not/AZone"}).Location(); loc != time.UTC {
		t.Errorf("unknown timezone = %v, want UTC", loc)
	}
}
