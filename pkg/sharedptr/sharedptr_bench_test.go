package sharedptr

import "testing"

func BenchmarkMake(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p := Make(i)
		_ = p.Close()
	}
}

func BenchmarkNew(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		v := i
		p := New(&v)
		_ = p.Close()
	}
}

func BenchmarkCloneClose(b *testing.B) {
	p := Make(42)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := p.Clone()
		_ = c.Close()
	}
}

func BenchmarkAssign(b *testing.B) {
	src := Make(1)
	var dst Ptr[int]
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = dst.Assign(src)
		_ = dst.Close()
	}
}
