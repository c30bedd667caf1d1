package store

import (
	"errors"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sub", "dev.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserSetAndVerifyPassword(t *testing.T) {
	Convey("the right password verifies and a wrong one doesn't", t, func() {
		u := &User{Email: "op@example.com"}
		So(u.SetPassword([]byte("correct horse")), ShouldBeNil)
		So(u.VerifyPassword([]byte("correct horse")), ShouldBeNil)
		So(u.VerifyPassword([]byte("wrong")), ShouldNotBeNil)
	})
}

func TestCreateAndLookupUser(t *testing.T) {
	Convey("a created user can be looked up by email with the same password", t, func() {
		s := openTempStore(t)
		u, err := s.CreateUser("op@example.com", "Operator", []byte("secret123"), true)
		So(err, ShouldBeNil)
		So(u.ID, ShouldBeGreaterThan, 0)

		got, err := s.UserByEmail("op@example.com")
		So(err, ShouldBeNil)
		So(got.Admin, ShouldBeTrue)
		So(got.VerifyPassword([]byte("secret123")), ShouldBeNil)
	})

	Convey("an unknown email returns ErrNotFound", t, func() {
		s := openTempStore(t)
		_, err := s.UserByEmail("nobody@example.com")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
	})
}

func TestLoadAccumOnFreshDatabase(t *testing.T) {
	Convey("a fresh database returns the zero accumulator, not an error", t, func() {
		s := openTempStore(t)
		accum, err := s.LoadAccum()
		So(err, ShouldBeNil)
		So(accum, ShouldResemble, robotstate.Accum{})
	})
}

func TestSaveAndLoadAccumRoundTrip(t *testing.T) {
	Convey("saved accumulators are restored exactly, overwriting any previous save", t, func() {
		s := openTempStore(t)
		want := robotstate.Accum{Scoop: 1, ScoopTotal: 2, Drive: 3, DriveTotal: 4, OpTotal: 5}
		So(s.SaveAccum(want), ShouldBeNil)

		got, err := s.LoadAccum()
		So(err, ShouldBeNil)
		So(got, ShouldResemble, want)

		want2 := robotstate.Accum{OpTotal: 99}
		So(s.SaveAccum(want2), ShouldBeNil)
		got2, err := s.LoadAccum()
		So(err, ShouldBeNil)
		So(got2, ShouldResemble, want2)
	})
}
