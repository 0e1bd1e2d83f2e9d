package models

import "testing"

func TestSeriesKeyString(t *testing.T) {
	cases := []struct {
		key  SeriesKey
		want string
	}{
		{NewSeriesKey(" aapl ", 5), "AAPL@5"},
		{SeriesKey{Symbol: "AAPL"}, "AAPL@0"},
		{SeriesKey{Symbol: "X:5"}, "X:5@0"},
		{SeriesKey{Symbol: "X", TimeFrame: 5}, "X@5"},
	}
	for _, c := range cases {
		if got := c.key.String(); got != c.want {
			t.Fatalf("%#v: expected %q, got %q", c.key, c.want, got)
		}
	}
	if (SeriesKey{Symbol: "X:5"}).String() == (SeriesKey{Symbol: "X", TimeFrame: 5}).String() {
		t.Fatalf("distinct keys rendered identically")
	}
}
