package wake

// PrefKeyPermission is the fixed key under which a confirmed permission
// grant is persisted. The value is the string sentinel "true"; anything
// else is treated as no prior grant.
const PrefKeyPermission = "wake.permission"

// prefTrue is the persisted sentinel for a confirmed grant.
const prefTrue = "true"

// PreferenceStore persists small string preferences across runs. Consumed,
// not owned: the detector only reads the prior-permission flag at
// construction and writes it once permission is first confirmed. A nil
// store keeps permission state in memory only.
type PreferenceStore interface {
	// Get returns the stored value for key and whether it was present.
	Get(key string) (string, bool)
	// Set stores value under key durably.
	Set(key, value string) error
}
