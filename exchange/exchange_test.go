package exchange

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestChannelReadWrite(t *testing.T) {
	Convey("Read returns the zero value before any Write", t, func() {
		var c Channel[int]
		So(c.Read(), ShouldEqual, 0)
	})

	Convey("Read observes the most recent Write", t, func() {
		var c Channel[int]
		c.Write(42)
		So(c.Read(), ShouldEqual, 42)
		c.Write(7)
		So(c.Read(), ShouldEqual, 7)
	})
}

func TestChannelConcurrentReaders(t *testing.T) {
	Convey("many concurrent readers never observe a torn write", t, func() {
		var c Channel[State0xD0]
		done := make(chan struct{})
		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-done:
						return
					default:
						v := c.Read()
						So(v.Connected == 0 || v.Connected == 1, ShouldBeTrue)
					}
				}
			}()
		}

		for i := 0; i < 1000; i++ {
			c.Write(State0xD0{State: State{Connected: byte(i % 2)}})
		}
		close(done)
		wg.Wait()
	})
}

func TestSanityCheckSize(t *testing.T) {
	Convey("SanityCheckSize agrees only when both sides match", t, func() {
		So(SanityCheckSize(10, 10), ShouldBeTrue)
		So(SanityCheckSize(10, 11), ShouldBeFalse)
	})
}
