package dynplugin

// Operations a foreign unit must expose, keyed by name, valued by arity.
const (
	opStart    = "Start"
	opStats    = "GetStats"
	opListener = "SetGameListener"
)

// RequiredOperations lists the operations and their parameter counts.
var RequiredOperations = map[string]int{
	opStart:    0,
	opStats:    0,
	opListener: 1,
}

// Conforms reports whether a unit can be adapted into a game: it must be
// an instantiable type exposing every required operation with matching
// arity. Result types are never inspected.
func Conforms(u CodeUnit) bool {
	switch u.Kind {
	case KindInterface, KindEnum, KindGeneric, KindAlias:
		return false
	}
	for name, params := range RequiredOperations {
		m, ok := u.Method(name)
		if !ok || m.Params != params {
			return false
		}
	}
	return true
}

func conforming(units []CodeUnit) []CodeUnit {
	var out []CodeUnit
	for _, u := range units {
		if Conforms(u) {
			out = append(out, u)
		}
	}
	return out
}
