package service_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
	"github.com/arcadehub/arcade/internal/service"
)

// fakeSessionCache tracks presence per game slug
type fakeSessionCache struct {
	players map[string]map[string]domain.ActivePlayer
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{players: map[string]map[string]domain.ActivePlayer{}}
}

func playerKey(userID *int64, sessionID string) string {
	if userID != nil {
		return "user_" + strconv.FormatInt(*userID, 10)
	}
	return "guest_" + sessionID
}

func (c *fakeSessionCache) PutActivePlayer(_ context.Context, slug string, p domain.ActivePlayer, _ time.Duration) error {
	if c.players[slug] == nil {
		c.players[slug] = map[string]domain.ActivePlayer{}
	}
	c.players[slug][playerKey(p.UserID, p.SessionID)] = p
	return nil
}

func (c *fakeSessionCache) TouchActivePlayer(_ context.Context, slug string, userID *int64, sessionID string, _ time.Duration) (bool, error) {
	p, ok := c.players[slug][playerKey(userID, sessionID)]
	if !ok {
		return false, nil
	}
	p.LastSeen = time.Now()
	c.players[slug][playerKey(userID, sessionID)] = p
	return true, nil
}

func (c *fakeSessionCache) RemoveActivePlayer(_ context.Context, slug string, userID *int64, sessionID string) error {
	delete(c.players[slug], playerKey(userID, sessionID))
	return nil
}

func (c *fakeSessionCache) ActivePlayers(_ context.Context, slug string, _ time.Duration) ([]domain.ActivePlayer, error) {
	var out []domain.ActivePlayer
	for _, p := range c.players[slug] {
		out = append(out, p)
	}
	return out, nil
}

func sessionConfig() *config.SessionConfig {
	return &config.SessionConfig{
		TTL:         time.Hour,
		StaleCutoff: 5 * time.Minute,
	}
}

func TestSessionService(t *testing.T) {
	Convey("Given a session service", t, func() {
		cache := newFakeSessionCache()
		hub := &fakeHub{}
		svc := service.NewSessionService(cache, hub, sessionConfig(), testLogger())

		Convey("When a guest starts playing without a session id", func() {
			result, err := svc.Start(context.Background(), "snake", "", "", nil)
			So(err, ShouldBeNil)

			Convey("Then a session id is minted and the guest counts as active", func() {
				So(result.SessionID, ShouldNotBeEmpty)
				So(result.ActivePlayersCount, ShouldEqual, 1)
			})

			Convey("And a game.started event is broadcast", func() {
				So(hub.events, ShouldContain, service.EventGameStarted)
			})

			Convey("And the guest shows up as Guest in the player list", func() {
				players, err := svc.ActivePlayers(context.Background(), "snake")
				So(err, ShouldBeNil)
				So(players, ShouldHaveLength, 1)
				So(players[0].UserName, ShouldEqual, "Guest")
				So(players[0].UserID, ShouldBeNil)
			})
		})

		Convey("When a signed-in player starts playing", func() {
			userID := int64(10)
			result, err := svc.Start(context.Background(), "snake", "sess-1", "alice", &userID)
			So(err, ShouldBeNil)
			So(result.SessionID, ShouldEqual, "sess-1")

			Convey("And heartbeats keep the session alive", func() {
				count, err := svc.Heartbeat(context.Background(), "snake", "sess-1", &userID)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
			})

			Convey("And ending the session removes them and broadcasts game.ended", func() {
				count, err := svc.End(context.Background(), "snake", "sess-1", "alice", &userID)
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 0)
				So(hub.events, ShouldContain, service.EventGameEnded)
			})
		})

		Convey("When a heartbeat arrives for an expired session", func() {
			_, err := svc.Heartbeat(context.Background(), "snake", "gone", nil)
			So(err, ShouldEqual, domain.ErrSessionNotFound)
		})

		Convey("When several players join the same game", func() {
			a, b := int64(10), int64(20)
			_, err := svc.Start(context.Background(), "snake", "s1", "alice", &a)
			So(err, ShouldBeNil)
			result, err := svc.Start(context.Background(), "snake", "s2", "bob", &b)
			So(err, ShouldBeNil)

			Convey("Then the count reflects everyone", func() {
				So(result.ActivePlayersCount, ShouldEqual, 2)
			})
		})
	})
}

// fakeGameStore is an in-memory game catalog
type fakeGameStore struct {
	games  map[string]*domain.Game
	plays  map[int64]int
	nextID int64
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{games: map[string]*domain.Game{}, plays: map[int64]int{}, nextID: 1}
}

func (s *fakeGameStore) GameBySlug(_ context.Context, slug string) (*domain.Game, error) {
	if g, ok := s.games[slug]; ok {
		return g, nil
	}
	return nil, domain.ErrGameNotFound
}

func (s *fakeGameStore) ListGames(_ context.Context) ([]domain.Game, error) {
	var out []domain.Game
	for _, g := range s.games {
		out = append(out, *g)
	}
	return out, nil
}

func (s *fakeGameStore) CreateGame(_ context.Context, g domain.Game) (domain.Game, error) {
	g.ID = s.nextID
	s.nextID++
	s.games[g.Slug] = &g
	return g, nil
}

func (s *fakeGameStore) IncrementPlayCount(_ context.Context, gameID int64) error {
	s.plays[gameID]++
	return nil
}

func TestGameService(t *testing.T) {
	Convey("Given a game service", t, func() {
		store := newFakeGameStore()
		svc := service.NewGameService(store, testLogger())

		Convey("When creating a game without a slug", func() {
			game, err := svc.Create(context.Background(), domain.CreateGameRequest{
				Name: "Space Invaders II!",
			})
			So(err, ShouldBeNil)

			Convey("Then the slug is derived from the name", func() {
				So(game.Slug, ShouldEqual, "space-invaders-ii")
			})

			Convey("And catalog defaults apply", func() {
				So(game.Category, ShouldEqual, "action")
				So(game.Difficulty, ShouldEqual, domain.DifficultyMedium)
				So(game.IsActive, ShouldBeTrue)
			})
		})

		Convey("When creating a game without a name", func() {
			_, err := svc.Create(context.Background(), domain.CreateGameRequest{})
			So(err, ShouldNotBeNil)
		})

		Convey("When recording a play", func() {
			game, err := svc.Create(context.Background(), domain.CreateGameRequest{Name: "Snake"})
			So(err, ShouldBeNil)

			err = svc.RecordPlay(context.Background(), "snake")
			So(err, ShouldBeNil)
			So(store.plays[game.ID], ShouldEqual, 1)
		})

		Convey("When recording a play for an unknown game", func() {
			err := svc.RecordPlay(context.Background(), "missing")
			So(err, ShouldEqual, domain.ErrGameNotFound)
		})
	})
}

func TestSlugify(t *testing.T) {
	Convey("Slugify derives URL-safe slugs", t, func() {
		So(service.Slugify("Snake"), ShouldEqual, "snake")
		So(service.Slugify("Space Invaders II!"), ShouldEqual, "space-invaders-ii")
		So(service.Slugify("  Tetris  99 "), ShouldEqual, "tetris-99")
	})
}
