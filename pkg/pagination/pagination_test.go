package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   Params
		want Params
	}{
		{Params{}, Params{Limit: DefaultLimit}},
		{Params{Limit: 10, Offset: 20}, Params{Limit: 10, Offset: 20}},
		{Params{Limit: 1000, Offset: -5}, Params{Limit: MaxLimit}},
		{Params{Limit: -1, Offset: 3}, Params{Limit: DefaultLimit, Offset: 3}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
