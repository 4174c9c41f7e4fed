package smartptr_test

import (
	"fmt"

	"github.com/rawbytedev/smartptr"
)

type conn struct{ name string }

func (c *conn) Close() error {
	fmt.Println("closing", c.name)
	return nil
}

func ExampleMakeShared() {
	a := smartptr.MakeShared(conn{name: "db"})
	b := a.Clone()
	fmt.Println(a.UseCount(), b.Get().name)

	_ = a.Close()
	fmt.Println(b.Unique())
	_ = b.Close()
	// Output:
	// 2 db
	// true
	// closing db
}

func ExampleMakeUnique() {
	a := smartptr.MakeUnique(conn{name: "cache"})
	b := a.Move()
	fmt.Println(a.Valid(), b.Valid())

	raw := b.Release()
	_ = b.Close()
	_ = raw.Close()
	// Output:
	// false true
	// closing cache
}
