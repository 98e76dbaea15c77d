package caravel

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func TestMapSlice(t *testing.T) {
	got := MapSlice([]int{1, 2, 3}, func(x int) int { return x * x })
	if !reflect.DeepEqual(got, []int{1, 4, 9}) {
		t.Errorf("MapSlice = %v, want [1 4 9]", got)
	}
}

func TestMapSliceChangesType(t *testing.T) {
	got := MapSlice([]int{1, 2}, strconv.Itoa)
	if !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("MapSlice = %v, want [1 2]", got)
	}
}

func TestMapSliceErr(t *testing.T) {
	got, err := MapSliceErr([]string{"1", "2"}, strconv.Atoi)
	if err != nil {
		t.Fatalf("MapSliceErr failed: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("MapSliceErr = %v, want [1 2]", got)
	}
}

func TestMapSliceErrNamesIndex(t *testing.T) {
	_, err := MapSliceErr([]string{"1", "oops", "3"}, strconv.Atoi)
	if err == nil {
		t.Fatal("expected error on unparseable element")
	}
	if got := err.Error(); !strings.Contains(got, "element 1") {
		t.Errorf("error %q should name element 1", got)
	}
}

func TestMapSliceErrStopsEarly(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := MapSliceErr([]int{1, 2, 3}, func(x int) (int, error) {
		calls++
		if x == 2 {
			return 0, boom
		}
		return x, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (stop at first error)", calls)
	}
}

func TestMap2Slice(t *testing.T) {
	got, err := Map2Slice([]int{1, 2, 3}, []int{10, 20, 30}, func(a, b int) int { return a + b })
	if err != nil {
		t.Fatalf("Map2Slice failed: %v", err)
	}
	if !reflect.DeepEqual(got, []int{11, 22, 33}) {
		t.Errorf("Map2Slice = %v, want [11 22 33]", got)
	}
}

func TestMap2SliceLengthMismatch(t *testing.T) {
	_, err := Map2Slice([]int{1, 2}, []int{1}, func(a, b int) int { return a })
	if err == nil {
		t.Error("mismatched lengths should fail")
	}
}

func TestMapIf(t *testing.T) {
	got := MapIf([]int{1, 2, 3, 4},
		func(x int) bool { return x%2 == 0 },
		func(x int) int { return -x })
	if !reflect.DeepEqual(got, []int{1, -2, 3, -4}) {
		t.Errorf("MapIf = %v, want [1 -2 3 -4]", got)
	}
}

func TestReduce(t *testing.T) {
	sum := Reduce([]int{1, 2, 3, 4}, 0, func(acc, x int) int { return acc + x })
	if sum != 10 {
		t.Errorf("Reduce sum = %d, want 10", sum)
	}

	joined := Reduce([]string{"a", "b", "c"}, "", func(acc, x string) string { return acc + x })
	if joined != "abc" {
		t.Errorf("Reduce join = %q, want %q (left to right)", joined, "abc")
	}
}

func TestKeepDiscard(t *testing.T) {
	even := func(x int) bool { return x%2 == 0 }
	xs := []int{1, 2, 3, 4, 5}

	if got := Keep(xs, even); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("Keep = %v, want [2 4]", got)
	}
	if got := Discard(xs, even); !reflect.DeepEqual(got, []int{1, 3, 5}) {
		t.Errorf("Discard = %v, want [1 3 5]", got)
	}
}

func TestKeepNoneMatching(t *testing.T) {
	got := Keep([]int{1, 3}, func(x int) bool { return x > 10 })
	if len(got) != 0 {
		t.Errorf("Keep = %v, want empty", got)
	}
}
