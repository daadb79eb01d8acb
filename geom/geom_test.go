package geom

import "testing"

func TestExtentsExtend(t *testing.T) {
	e := EmptyExtents()
	if !e.Empty() {
		t.Fatal("EmptyExtents should report Empty")
	}
	e = e.Extend(Point3{1, 2, 3})
	if e.Empty() {
		t.Fatal("extents with one point must not be empty")
	}
	if e.Min != (Point3{1, 2, 3}) || e.Max != (Point3{1, 2, 3}) {
		t.Fatalf("single-point extents = %+v", e)
	}
	e = e.Extend(Point3{-1, 5, 0})
	want := Extents{Min: Point3{-1, 2, 0}, Max: Point3{1, 5, 3}}
	if e != want {
		t.Fatalf("Extend = %+v, want %+v", e, want)
	}
}

func TestMinMax(t *testing.T) {
	a := Point3{1, 9, -2}
	b := Point3{4, 3, -7}
	if got := a.Min(b); got != (Point3{1, 3, -7}) {
		t.Fatalf("Min = %+v", got)
	}
	if got := a.Max(b); got != (Point3{4, 9, -2}) {
		t.Fatalf("Max = %+v", got)
	}
}
