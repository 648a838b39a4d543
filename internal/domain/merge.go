package domain

import (
	"dario.cat/mergo"
)

// MergeConfig lays override values over base, leaving base fields untouched
// where the override is zero. Used when a config file refines the defaults.
func MergeConfig(base, override *Config) error {
	if override == nil {
		return nil
	}
	if err := mergo.Merge(base, override, mergo.WithOverride); err != nil {
		return Error{
			Type:    ErrorTypeInternal,
			Message: "failed to merge configuration: " + err.Error(),
		}
	}
	return nil
}

// MergeMetadata combines two free-form metadata maps, overlay winning on key
// collisions and slices concatenating. Neither input is mutated.
func MergeMetadata(base, overlay map[string]interface{}) (map[string]interface{}, error) {
	if len(base) == 0 && len(overlay) == 0 {
		return nil, nil
	}

	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}

	if err := mergo.Merge(&merged, overlay,
		mergo.WithOverride,
		mergo.WithAppendSlice); err != nil {
		return nil, Error{
			Type:    ErrorTypeInternal,
			Message: "failed to merge metadata: " + err.Error(),
		}
	}

	return merged, nil
}
