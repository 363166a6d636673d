package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arcadehub/arcade/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		Convey("When it sets a subset of fields", func() {
			path := writeConfig(t, `
server:
  port: 9000
leaderboard:
  default_limit: 25
auth:
  jwt_secret: file-secret
`)
			cfg, err := config.Load(path)
			So(err, ShouldBeNil)

			Convey("Then explicit values win", func() {
				So(cfg.Server.Port, ShouldEqual, 9000)
				So(cfg.Leaderboard.DefaultLimit, ShouldEqual, 25)
				So(cfg.Auth.JWTSecret, ShouldEqual, "file-secret")
			})

			Convey("And missing values fall back to defaults", func() {
				So(cfg.Leaderboard.MaxLimit, ShouldEqual, 100)
				So(cfg.Leaderboard.CacheTTL, ShouldEqual, 30*time.Second)
				So(cfg.Sessions.StaleCutoff, ShouldEqual, 5*time.Minute)
				So(cfg.Postgres.Host, ShouldEqual, "localhost")
				So(cfg.Kafka.Topic, ShouldEqual, "arcade-scores")
				So(cfg.Refresh.Interval, ShouldEqual, time.Minute)
			})
		})

		Convey("When it references environment variables", func() {
			t.Setenv("ARCADE_TEST_SECRET", "from-env")
			path := writeConfig(t, `
auth:
  jwt_secret: ${ARCADE_TEST_SECRET}
`)
			cfg, err := config.Load(path)
			So(err, ShouldBeNil)
			So(cfg.Auth.JWTSecret, ShouldEqual, "from-env")
		})

		Convey("When the file does not exist", func() {
			_, err := config.Load("/nonexistent/config.yaml")
			So(err, ShouldNotBeNil)
		})

		Convey("When the file is not valid YAML", func() {
			path := writeConfig(t, "server: [not a mapping")
			_, err := config.Load(path)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRolesConfig(t *testing.T) {
	Convey("Given the default role mapping", t, func() {
		cfg := config.DefaultConfig()

		Convey("The default role is player", func() {
			So(cfg.Roles.DefaultRole, ShouldEqual, "player")
		})

		Convey("Players carry no staff permissions", func() {
			So(cfg.Roles.Can("player", "manage-content"), ShouldBeFalse)
			So(cfg.Roles.Can("player", "ban-users"), ShouldBeFalse)
		})

		Convey("Staff roles build up toward super-admin", func() {
			So(cfg.Roles.Can("moderator", "moderate-comments"), ShouldBeTrue)
			So(cfg.Roles.Can("moderator", "manage-content"), ShouldBeFalse)
			So(cfg.Roles.Can("admin", "manage-content"), ShouldBeTrue)
			So(cfg.Roles.Can("admin", "manage-roles"), ShouldBeFalse)
			So(cfg.Roles.Can("super-admin", "manage-roles"), ShouldBeTrue)
		})

		Convey("Unknown roles grant nothing", func() {
			So(cfg.Roles.Can("ghost", "manage-content"), ShouldBeFalse)
		})
	})

	Convey("Given a custom mapping from configuration", t, func() {
		path := writeConfig(t, `
roles:
  default_role: member
  permissions:
    member:
      - submit-scores
`)
		cfg, err := config.Load(path)
		So(err, ShouldBeNil)
		So(cfg.Roles.DefaultRole, ShouldEqual, "member")
		So(cfg.Roles.Can("member", "submit-scores"), ShouldBeTrue)
		So(cfg.Roles.Can("member", "manage-content"), ShouldBeFalse)
	})
}

func TestPostgresConnectionString(t *testing.T) {
	Convey("The connection string assembles from parts", t, func() {
		cfg := config.PostgresConfig{
			Host: "db", Port: 5432, User: "arcade", Password: "pw", Database: "arcade",
		}
		So(cfg.ConnectionString(), ShouldEqual, "postgres://arcade:pw@db:5432/arcade?sslmode=disable")

		cfg.SSLMode = "require"
		So(cfg.ConnectionString(), ShouldEqual, "postgres://arcade:pw@db:5432/arcade?sslmode=require")
	})
}
