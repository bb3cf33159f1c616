package accounts

// ProfileComplete reports whether the listing carries every field its
// category requires to be shown publicly.
func ProfileComplete(c Category, p Profile) bool {
	if !p.EmailVerified {
		return false
	}

	if c == CategorySpa {
		if p.Username == "" || p.ServiceType == "" {
			return false
		}
	} else {
		if p.Gender == "" || p.SexualOrientation == "" || p.Age == 0 || p.Nationality == "" || p.ServiceType == "" {
			return false
		}
	}

	l := p.Location
	if l.Country == "" || l.County == "" || l.Location == "" || l.Area == "" {
		return false
	}

	return p.Phone != "" && p.ProfileImage != "" && p.Services > 0
}

// RecomputeActivation derives the public activation flag of an account.
// A manually deactivated account always stays inactive.
func RecomputeActivation(a *Account) bool {
	if a.IsDeactivated {
		return false
	}
	if !a.Package.Exists() || a.Package.Status != StatusActive {
		return false
	}
	return ProfileComplete(a.Category, a.Profile)
}
