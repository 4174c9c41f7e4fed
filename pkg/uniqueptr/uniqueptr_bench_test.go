package uniqueptr

import "testing"

func BenchmarkMakeClose(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p := Make(i)
		_ = p.Close()
	}
}

func BenchmarkMove(b *testing.B) {
	p := Make(42)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		q := p.Move()
		_ = p.MoveFrom(q)
	}
}
