package dsoconfig

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"

	"github.com/lumen-robotics/dso/dsoerrors"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestFromJSONRoundTrip(t *testing.T) {
	cfg := Default()
	data, err := json.Marshal(cfg)
	test.That(t, err, test.ShouldBeNil)

	got, err := FromJSON(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, cfg)
}

func TestValidateRejectsCrossedDepthBounds(t *testing.T) {
	cfg := Default()
	cfg.Depth.Min = 10
	cfg.Depth.Max = 1
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	_, ok := err.(*dsoerrors.ConfigurationError)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestValidateRejectsPureInitializerPath(t *testing.T) {
	cfg := Default()
	cfg.UseORBInitialization = false
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidateRejectsZeroThreads(t *testing.T) {
	cfg := Default()
	cfg.Threading.NumThreads = 0
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)
}

func TestDecodeAttribute(t *testing.T) {
	cfg := Default()
	cfg.Attributes = map[string]interface{}{
		"experimental": map[string]interface{}{"enabled": true, "scale": 2.5},
	}
	var out struct {
		Enabled bool    `mapstructure:"enabled"`
		Scale   float64 `mapstructure:"scale"`
	}
	err := cfg.DecodeAttribute("experimental", &out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Enabled, test.ShouldBeTrue)
	test.That(t, out.Scale, test.ShouldEqual, 2.5)
}

func TestDecodeAttributeMissing(t *testing.T) {
	cfg := Default()
	var out struct{}
	err := cfg.DecodeAttribute("missing", &out)
	test.That(t, err, test.ShouldNotBeNil)
}
