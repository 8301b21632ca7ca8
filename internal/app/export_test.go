package app

// SetNameFunc replaces the random object-name generator.
func (u *ImageUploader) SetNameFunc(fn func() string) { u.newName = fn }
