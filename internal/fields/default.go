package fields

// Keys of the built-in registry
const (
	KeyFullName    = "full_name"
	KeyIDNumber    = "id_number"
	KeyEmail       = "email"
	KeyPhone       = "phone"
	KeyBirthDate   = "birth_date"
	KeyProgramme   = "programme"
	KeySemester    = "semester"
	KeyDate        = "date"
	KeyNameRepeat  = "full_name_repeat"
	KeySignature   = "signature"
	KeyInternalRef = "internal_ref"
)

// Default returns the registry for the student enrolment form. Canvas
// coordinates are pixels on the 1240x1754 background; PDF coordinates
// are points on an A4 template.
func Default() *Registry {
	return MustNew(
		Descriptor{
			Key: KeyFullName, Label: "Full name", Placeholder: "Jane Doe", Kind: KindText, Required: true,
			Canvas: Geometry{X: 260, Y: 402, FontSize: 26}, PDF: Geometry{X: 125, Y: 193, FontSize: 11},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeyIDNumber, Label: "ID number", Kind: KindNumber, Required: true,
			Canvas: Geometry{X: 260, Y: 470, FontSize: 26}, PDF: Geometry{X: 125, Y: 226, FontSize: 11},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeyEmail, Label: "Email", Placeholder: "jane@example.org", Kind: KindEmail, Required: true,
			Canvas: Geometry{X: 260, Y: 538, FontSize: 26}, PDF: Geometry{X: 125, Y: 258, FontSize: 11},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeyPhone, Label: "Phone", Kind: KindTel, Required: true,
			Canvas: Geometry{X: 760, Y: 538, FontSize: 26}, PDF: Geometry{X: 365, Y: 258, FontSize: 11},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeyBirthDate, Label: "Date of birth", Placeholder: "2000-01-31", Kind: KindDate, Required: true,
			Canvas: Geometry{X: 760, Y: 470, FontSize: 26}, PDF: Geometry{X: 365, Y: 226, FontSize: 11},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeyProgramme, Label: "Programme", Kind: KindText, Required: true,
			Canvas: Geometry{X: 260, Y: 640, FontSize: 26}, PDF: Geometry{X: 125, Y: 307, FontSize: 11},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeySemester, Label: "Semester", Kind: KindNumber,
			Canvas: Geometry{X: 1010, Y: 640, FontSize: 26}, PDF: Geometry{X: 485, Y: 307, FontSize: 11},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeyDate, Label: "Date", Kind: KindDate, Required: true,
			Canvas: Geometry{X: 260, Y: 1420, FontSize: 24}, PDF: Geometry{X: 125, Y: 682, FontSize: 10},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		// Printed under the signature line so the signatory's name stays legible.
		Descriptor{
			Key: KeyNameRepeat, Label: "Name under signature", Kind: KindText, DerivedFrom: KeyFullName,
			Canvas: Geometry{X: 700, Y: 1540, FontSize: 22}, PDF: Geometry{X: 336, Y: 740, FontSize: 9},
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeySignature, Label: "Signature", Kind: KindSignature, Required: true,
			Canvas: Geometry{X: 700, Y: 1330}, PDF: Geometry{X: 336, Y: 640},
			Width: 360, Height: 160, PDFWidth: 172, PDFHeight: 76,
			EnabledInCanvas: true, EnabledInPDF: true,
		},
		Descriptor{
			Key: KeyInternalRef, Label: "Internal reference", Kind: KindText, Hidden: true,
		},
	)
}
