package cache

import (
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	. "github.com/smartystreets/goconvey/convey"
)

func TestElements(t *testing.T) {

	c := NewCacheWithRemovalNotifier("elements", nil)
	id := xid.New().String()
	fakeid := xid.New().String()
	newid := xid.New().String()

	Convey("Given that I want to test elements, I must initialize a cache", t, func() {

		Convey("Given that I add a new element in the cache, it should not exist yet", func() {
			So(c.AddOrUpdate(id, "element"), ShouldBeFalse)
		})

		Convey("Given that I have an element in the cache, I should be able to read it", func() {
			value, err := c.Get(id)
			So(err, ShouldBeNil)
			So(value, ShouldEqual, "element")
		})

		Convey("Given that I try to read an element that is not there, I should get an error", func() {
			_, err := c.Get(fakeid)
			So(errors.Cause(err), ShouldEqual, ErrNotFound)
		})

		Convey("Given that I add or update elements, I should know which ones existed", func() {
			So(c.AddOrUpdate(newid, "element2"), ShouldBeFalse)
			So(c.AddOrUpdate(newid, "element3"), ShouldBeTrue)

			value, err := c.Get(newid)
			So(err, ShouldBeNil)
			So(value, ShouldEqual, "element3")
			So(len(c.KeyList()), ShouldEqual, 2)
		})

		Convey("Given that I have an element in the cache, I should be able to delete it", func() {
			So(c.Remove(id), ShouldBeNil)
		})

		Convey("Given that I try to delete the same element twice, I should not be able to do it", func() {
			err := c.Remove(id)
			So(errors.Cause(err), ShouldEqual, ErrNotFound)
			So(c.KeyList(), ShouldResemble, []interface{}{newid})
			So(c.ToString(), ShouldEqual, "2/1")
		})
	})
}

func TestRemovalNotifier(t *testing.T) {

	Convey("Given a cache with a removal notifier", t, func() {

		var lock sync.Mutex
		removed := map[interface{}]interface{}{}

		c := NewCacheWithRemovalNotifier("notifier", func(ds DataStore, id interface{}, item interface{}) {
			lock.Lock()
			defer lock.Unlock()
			removed[id] = item
			So(len(ds.KeyList()), ShouldEqual, 0)
		})

		So(c.AddOrUpdate("session", 42), ShouldBeFalse)

		Convey("Removing the element should notify with its value", func() {
			So(c.Remove("session"), ShouldBeNil)

			lock.Lock()
			defer lock.Unlock()
			So(removed["session"], ShouldEqual, 42)
		})

		Convey("The registry should list the cache", func() {
			So(strings.Contains(ToString(), "notifier"), ShouldBeTrue)
		})
	})
}
