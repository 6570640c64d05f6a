package scheduler

import "fmt"

// Weights are the caller-supplied coefficients of the placement objective.
type Weights struct {
	Cost   float64 `json:"cost" yaml:"cost"`
	Carbon float64 `json:"carbon" yaml:"carbon"`
	SLA    float64 `json:"sla" yaml:"sla"`
}

// DefaultWeights returns the standard objective coefficients.
func DefaultWeights() Weights {
	return Weights{Cost: 1.0, Carbon: 0.5, SLA: 2.0}
}

// OrDefault substitutes the defaults when all weights are zero.
func (w Weights) OrDefault() Weights {
	if w.Cost == 0 && w.Carbon == 0 && w.SLA == 0 {
		return DefaultWeights()
	}
	return w
}

// Config defines planning parameters loaded from configuration.
type Config struct {
	// DefaultClusterCapKW bounds concurrent power per cluster unless the
	// cluster has an explicit entry in ClusterCapsKW.
	DefaultClusterCapKW float64            `json:"default_cluster_cap_kw" yaml:"default_cluster_cap_kw"`
	ClusterCapsKW       map[string]float64 `json:"cluster_caps_kw" yaml:"cluster_caps_kw"`
	Weights             Weights            `json:"weights" yaml:"weights"`
}

// SetDefaults fills unset fields with defaults.
func (c *Config) SetDefaults() {
	if c.DefaultClusterCapKW == 0 {
		c.DefaultClusterCapKW = 10000
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if c.DefaultClusterCapKW <= 0 {
		return fmt.Errorf("default_cluster_cap_kw must be positive")
	}
	for id, cap := range c.ClusterCapsKW {
		if cap <= 0 {
			return fmt.Errorf("cluster cap for %q must be positive", id)
		}
	}
	return nil
}

// Cap returns the power cap for a cluster.
func (c Config) Cap(clusterID string) float64 {
	if cap, ok := c.ClusterCapsKW[clusterID]; ok {
		return cap
	}
	return c.DefaultClusterCapKW
}
