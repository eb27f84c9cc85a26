package models

// AssignNameOptions is the fixed counter roster, alphabetical.
// Includes Eric, excludes Erick (per warehouse request).
var AssignNameOptions = []string{
	"Aldo", "Alex", "Carlos", "Clayton", "Cody", "Enrique", "Eric",
	"James", "Jake", "Johntai", "Karen", "Kevin", "Luis", "Nyahok",
	"Stephanie", "Tyteanna",
}

func IsKnownCounter(name string) bool {
	for _, n := range AssignNameOptions {
		if n == name {
			return true
		}
	}
	return false
}
