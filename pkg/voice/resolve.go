package voice

// Resolve picks a voice from a snapshot of the available set.
//
// Order: the requested name (or provider ID), British English female,
// any British English, English female, any English, then the first voice.
// It returns false only when voices is empty.
func Resolve(voices []Descriptor, requested string) (Descriptor, bool) {
	if len(voices) == 0 {
		return Descriptor{}, false
	}

	if requested != "" {
		for _, v := range voices {
			if v.Name == requested {
				return v, true
			}
		}
		for _, v := range voices {
			if v.ID == requested {
				return v, true
			}
		}
	}

	rules := []func(Descriptor) bool{
		func(v Descriptor) bool { return isBritishEnglish(v.Locale) && v.IsFemale() },
		func(v Descriptor) bool { return isBritishEnglish(v.Locale) },
		func(v Descriptor) bool { return isEnglish(v.Locale) && v.IsFemale() },
		func(v Descriptor) bool { return isEnglish(v.Locale) },
	}
	for _, match := range rules {
		for _, v := range voices {
			if match(v) {
				return v, true
			}
		}
	}

	return voices[0], true
}
