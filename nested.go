package atone

// SerializeNested encodes v with s when v describes itself. Formats call it
// before falling back to their scalar encoding; handled reports whether v
// was Serializable.
func SerializeNested(s Serializer, v any) (handled bool, err error) {
	sv, ok := v.(Serializable)
	if !ok {
		return false, nil
	}
	return true, sv.Serialize(s)
}

// DeserializeNested decodes into dst with d when dst describes itself.
// With inPlace set, InPlaceDeserializable is preferred so nested containers
// keep their storage; otherwise Deserializable is used.
func DeserializeNested(d Deserializer, dst any, inPlace bool) (handled bool, err error) {
	if inPlace {
		if ip, ok := dst.(InPlaceDeserializable); ok {
			return true, ip.DeserializeInPlace(d)
		}
	}
	if dv, ok := dst.(Deserializable); ok {
		return true, dv.Deserialize(d)
	}
	return false, nil
}

// Describes reports whether the value behind dst decodes itself in the
// given mode, letting formats decide before reading any input whether the
// next value must be a nested sequence. It agrees with DeserializeNested: a
// value that is only InPlaceDeserializable describes itself only when
// inPlace is set.
func Describes(dst any, inPlace bool) bool {
	if _, ok := dst.(Deserializable); ok {
		return true
	}
	if inPlace {
		_, ok := dst.(InPlaceDeserializable)
		return ok
	}
	return false
}
