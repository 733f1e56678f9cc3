package index

import (
	"errors"
	"testing"

	. "github.com/fulldump/biff"
)

func TestCompare(t *testing.T) {
	AssertEqual(Compare(K(1), K(2)), -1)
	AssertEqual(Compare(K(2), K(2)), 0)
	AssertEqual(Compare(K(int64(3)), K(2.5)), 1)
	AssertEqual(Compare(K(3), K(float64(3))), 0)
	AssertEqual(Compare(K("a"), K("b")), -1)
	AssertEqual(Compare(K(false), K(true)), -1)

	// type order
	AssertEqual(Compare(K(true), K(0)), -1)
	AssertEqual(Compare(K(1000), K("")), -1)

	// prefixes
	AssertEqual(Compare(K(2025), K(2025, 3)), -1)
	AssertEqual(Compare(K(2025, 3), K(2025)), 1)
}

func TestCompare_Sentinels(t *testing.T) {
	AssertEqual(Compare(K(Low), K(-1e300)), -1)
	AssertEqual(Compare(K(High), K("zzz")), 1)
	AssertEqual(Compare(K(2025, Low), K(2025, 0)), -1)
	AssertEqual(Compare(K(2025, High), K(2025, 29)), 1)
	AssertEqual(Compare(K(2025, High), K(2026, Low)), -1)
}

func TestCompare_NoDelimiterAmbiguity(t *testing.T) {
	AssertNotEqual(Compare(K(1, 23), K(12, 3)), 0)
	AssertEqual(Compare(K(1, 23), K(12, 3)), -1)
}

func TestCompare_Unsupported(t *testing.T) {
	defer func() {
		AssertNotNil(recover())
	}()
	Compare(K([]int{1}), K(1))
}

func TestKey_String(t *testing.T) {
	AssertEqual(K(2025, "BOS", High).String(), `[2025,"BOS",High]`)
}

func TestValidate(t *testing.T) {
	AssertNil(Validate(K(2025, "BOS", true, Low)))
	AssertNil(Validate(nil))

	err := Validate(K(2025, nil))
	AssertTrue(errors.Is(err, ErrInvalidKey))
	AssertEqual(err.Error(), "invalid index key: element 1 has type <nil>")

	AssertTrue(errors.Is(Validate(K([]int{1})), ErrInvalidKey))
}
