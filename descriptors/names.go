package descriptors

import "strings"

func BinaryToFQN(binary string) string {
	return strings.ReplaceAll(binary, "/", ".")
}

func FQNToBinary(fqn string) string {
	return strings.ReplaceAll(fqn, ".", "/")
}

// PackageOf returns the binary package of a binary class name, "" for the default package.
func PackageOf(binary string) string {
	if i := strings.LastIndexByte(binary, '/'); i >= 0 {
		return binary[:i]
	}
	return ""
}

func StripDuplicateMarker(name string) string {
	return strings.TrimRight(name, DuplicateMarker)
}

func IsDuplicate(name string) bool {
	return strings.HasSuffix(name, DuplicateMarker)
}
