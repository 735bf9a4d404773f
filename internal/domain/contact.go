package domain

// CustomerContact is collected during Submission.
type CustomerContact struct {
	FullName   string `json:"full_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	NationalID string `json:"national_id,omitempty"`
}

// Merge copies every non-empty field of u into c and reports whether anything changed.
func (c *CustomerContact) Merge(u CustomerContact) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&c.FullName, u.FullName)
	set(&c.Email, u.Email)
	set(&c.Phone, u.Phone)
	set(&c.NationalID, u.NationalID)
	return changed
}

// IsEmpty reports whether no field is set.
func (c CustomerContact) IsEmpty() bool {
	return c.FullName == "" && c.Email == "" && c.Phone == "" && c.NationalID == ""
}

// Missing lists the required fields that are still empty.
func (c CustomerContact) Missing() []string {
	var out []string
	if c.FullName == "" {
		out = append(out, "full name")
	}
	if c.Email == "" {
		out = append(out, "email")
	}
	if c.Phone == "" {
		out = append(out, "phone number")
	}
	return out
}

// Complete reports whether name, email, and phone are present.
func (c CustomerContact) Complete() bool {
	return len(c.Missing()) == 0
}
