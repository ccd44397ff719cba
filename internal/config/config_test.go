package config_test

import (
	"context"
	"testing"

	"github.com/okian/gridrace/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Mode, convey.ShouldEqual, config.ModeBoth)
			convey.So(cfg.MasterData, convey.ShouldEqual, "masterdata.yaml")
			convey.So(cfg.BootstrapOffsetMS, convey.ShouldEqual, 0)
			convey.So(cfg.GeneratedUsers, convey.ShouldEqual, 0)
		})
	})
}
