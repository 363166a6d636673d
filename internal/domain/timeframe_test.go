package domain_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arcadehub/arcade/internal/domain"
)

func TestParseTimeframe(t *testing.T) {
	Convey("ParseTimeframe maps query strings to windows", t, func() {
		So(domain.ParseTimeframe("30d"), ShouldEqual, domain.Timeframe30Days)
		So(domain.ParseTimeframe("60d"), ShouldEqual, domain.Timeframe60Days)
		So(domain.ParseTimeframe("90d"), ShouldEqual, domain.Timeframe90Days)
		So(domain.ParseTimeframe("1y"), ShouldEqual, domain.TimeframeYear)
		So(domain.ParseTimeframe("all"), ShouldEqual, domain.TimeframeAll)

		Convey("Unknown values fall back to all-time instead of failing", func() {
			So(domain.ParseTimeframe(""), ShouldEqual, domain.TimeframeAll)
			So(domain.ParseTimeframe("7d"), ShouldEqual, domain.TimeframeAll)
			So(domain.ParseTimeframe("garbage"), ShouldEqual, domain.TimeframeAll)
		})
	})
}

func TestTimeframeLowerBound(t *testing.T) {
	Convey("Given a fixed reference time", t, func() {
		now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

		Convey("Windowed timeframes bound by calendar days", func() {
			bound, ok := domain.Timeframe30Days.LowerBound(now)
			So(ok, ShouldBeTrue)
			So(bound, ShouldEqual, now.AddDate(0, 0, -30))

			bound, ok = domain.TimeframeYear.LowerBound(now)
			So(ok, ShouldBeTrue)
			So(bound, ShouldEqual, now.AddDate(0, 0, -365))
		})

		Convey("All-time has no bound", func() {
			_, ok := domain.TimeframeAll.LowerBound(now)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestScoreSubmissionValidate(t *testing.T) {
	Convey("Score submissions enforce their declared constraints", t, func() {
		level := 3
		seconds := 120

		Convey("A plain non-negative score passes", func() {
			So(domain.ScoreSubmission{Score: 0}.Validate(), ShouldBeNil)
			So(domain.ScoreSubmission{Score: 5000, LevelReached: &level, TimePlayedSeconds: &seconds}.Validate(), ShouldBeNil)
		})

		Convey("A negative score is rejected", func() {
			err := domain.ScoreSubmission{Score: -1}.Validate()
			So(err, ShouldWrap, domain.ErrInvalidScore)
		})

		Convey("A zero level is rejected when present", func() {
			zero := 0
			err := domain.ScoreSubmission{Score: 10, LevelReached: &zero}.Validate()
			So(err, ShouldWrap, domain.ErrInvalidRequest)
		})

		Convey("Negative time played is rejected when present", func() {
			neg := -5
			err := domain.ScoreSubmission{Score: 10, TimePlayedSeconds: &neg}.Validate()
			So(err, ShouldWrap, domain.ErrInvalidRequest)
		})
	})
}
