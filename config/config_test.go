package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "backend_config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFillsDefaultTuneableWhenOmitted(t *testing.T) {
	Convey("a config with no tuneable section gets the factory defaults", t, func() {
		path := writeTempConfig(t, "version: 1\nslots:\n  - slot_id: D0\n    device: /dev/ttyUSB0\n    firmware_version: \"~0.1.0\"\n")
		cfg, err := Load(path)
		So(err, ShouldBeNil)
		So(cfg.Version, ShouldEqual, 1)
		So(len(cfg.Slots), ShouldEqual, 1)
		So(cfg.Slots[0].SlotID, ShouldEqual, "D0")
		So(cfg.Tuneable, ShouldResemble, robotstate.DefaultTuneable())
	})
}

func TestLoadKeepsExplicitTuneable(t *testing.T) {
	Convey("an explicit tuneable section is not overwritten", t, func() {
		path := writeTempConfig(t, "version: 1\ntuneable:\n  aggro: 2.5\n  tool: 0\n  cut: 1\n  drive: 1\n")
		cfg, err := Load(path)
		So(err, ShouldBeNil)
		So(cfg.Tuneable.Aggro, ShouldEqual, 2.5)
	})
}

func TestLoadMissingFile(t *testing.T) {
	Convey("a missing config path is an error", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
		So(err, ShouldNotBeNil)
	})
}

func TestLoadEnvDefaults(t *testing.T) {
	Convey("LoadEnv falls back to its envDefault tags when unset", t, func() {
		os.Unsetenv("JWT_ISSUER")
		os.Unsetenv("LISTEN_ON")
		e, err := LoadEnv()
		So(err, ShouldBeNil)
		So(e.JWTIssuer, ShouldEqual, "DEV")
		So(e.ListenOn, ShouldEqual, "0.0.0.0:8080")
	})

	Convey("LoadEnv honors an explicitly set environment variable", t, func() {
		os.Setenv("JWT_ISSUER", "excahauler-prod")
		defer os.Unsetenv("JWT_ISSUER")
		e, err := LoadEnv()
		So(err, ShouldBeNil)
		So(e.JWTIssuer, ShouldEqual, "excahauler-prod")
	})
}
