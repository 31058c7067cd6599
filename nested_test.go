package atone

import "testing"

type freshOnly struct{}

func (*freshOnly) Deserialize(Deserializer) error { return nil }

type reuseOnly struct{}

func (*reuseOnly) DeserializeInPlace(Deserializer) error { return nil }

type both struct {
	freshOnly
	reuseOnly
}

func TestDescribesAgreesWithDeserializeNested(t *testing.T) {
	var n int
	tests := []struct {
		name    string
		dst     any
		inPlace bool
		want    bool
	}{
		{"scalar", &n, false, false},
		{"scalar in place", &n, true, false},
		{"fresh only", &freshOnly{}, false, true},
		{"fresh only in place", &freshOnly{}, true, true},
		{"reuse only", &reuseOnly{}, false, false},
		{"reuse only in place", &reuseOnly{}, true, true},
		{"both", &both{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describes(tt.dst, tt.inPlace); got != tt.want {
				t.Errorf("Describes = %v, want %v", got, tt.want)
			}
			handled, err := DeserializeNested(nil, tt.dst, tt.inPlace)
			if err != nil {
				t.Fatalf("DeserializeNested: %v", err)
			}
			if handled != tt.want {
				t.Errorf("DeserializeNested handled = %v, Describes = %v", handled, tt.want)
			}
		})
	}
}
