package mock

import (
	"github.com/cjeanneret/gpcam/internal/gphoto"
)

// Widget describes a node of the simulated configuration tree.
type Widget struct {
	Name     string
	Label    string
	Info     string
	Type     gphoto.WidgetType
	ReadOnly bool

	Text  string
	Float float32
	Int   int

	Choices        []string
	Min, Max, Step float32

	Children []*Widget
}

// Window builds the toplevel container.
func Window(name, label string, children ...*Widget) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetWindow, Children: children}
}

// Section builds a container.
func Section(name, label string, children ...*Widget) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetSection, Children: children}
}

// Text builds a free text setting.
func Text(name, label, value string) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetText, Text: value}
}

// Radio builds a single choice setting.
func Radio(name, label, value string, choices ...string) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetRadio, Text: value, Choices: choices}
}

// Menu builds a drop-down setting.
func Menu(name, label, value string, choices ...string) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetMenu, Text: value, Choices: choices}
}

// Range builds a float setting.
func Range(name, label string, value, lo, hi, step float32) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetRange, Float: value, Min: lo, Max: hi, Step: step}
}

// Toggle builds an integer/on-off setting.
func Toggle(name, label string, value int) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetToggle, Int: value}
}

// Date builds a unix-time setting.
func Date(name, label string, value int) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetDate, Int: value}
}

// Button builds an action without value.
func Button(name, label string) *Widget {
	return &Widget{Name: name, Label: label, Type: gphoto.WidgetButton}
}

// RO marks w read-only and returns it.
func RO(w *Widget) *Widget {
	w.ReadOnly = true
	return w
}

// Find returns the node at a configuration path, or nil.
func (w *Widget) Find(path string) *Widget {
	cur := w
	for _, name := range gphoto.SplitPath(path) {
		var next *Widget
		for _, c := range cur.Children {
			if c.Name == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func (w *Widget) clone() *Widget {
	c := *w
	c.Choices = append([]string(nil), w.Choices...)
	c.Children = make([]*Widget, len(w.Children))
	for i, ch := range w.Children {
		c.Children[i] = ch.clone()
	}
	return &c
}

// apply copies the values of src into w, matching children by name.
func (w *Widget) apply(src *Widget) {
	if !w.ReadOnly {
		w.Text, w.Float, w.Int = src.Text, src.Float, src.Int
	}
	for _, sc := range src.Children {
		for _, c := range w.Children {
			if c.Name == sc.Name {
				c.apply(sc)
				break
			}
		}
	}
}

// DemoTree is a configuration tree modelled on a Canon EOS body.
func DemoTree() *Widget {
	return Window("main", "Camera and Driver Configuration",
		Section("actions", "Camera Actions",
			Radio("eosremoterelease", "Canon EOS Remote Release", "None",
				"None", "Press Half", "Press Full", "Release Half", "Release Full", "Immediate"),
			Toggle("autofocusdrive", "Drive Canon DSLR Autofocus", 0),
			Toggle("viewfinder", "Canon EOS Viewfinder", 0),
			Button("syncdatetime", "Set camera date and time to PC time"),
		),
		Section("settings", "Camera Settings",
			Date("datetime", "Camera Date and Time", 1700000000),
			Text("artist", "Artist", ""),
			Text("copyright", "Copyright", ""),
			Radio("capturetarget", "Capture Target", "Internal RAM", "Internal RAM", "Memory card"),
		),
		Section("status", "Camera Status Information",
			RO(Text("serialnumber", "Serial Number", "0123456789ab")),
			RO(Text("batterylevel", "Battery Level", "100%")),
			RO(Text("lensname", "Lens Name", "EF-S18-55mm f/3.5-5.6 III")),
		),
		Section("imgsettings", "Image Settings",
			Radio("imageformat", "Image Format", "Large Fine JPEG",
				"Large Fine JPEG", "Large Normal JPEG", "Medium Fine JPEG", "RAW", "RAW + Large Fine JPEG"),
			Radio("iso", "ISO Speed", "Auto", "Auto", "100", "200", "400", "800", "1600", "3200", "6400"),
			Radio("whitebalance", "WhiteBalance", "Auto", "Auto", "Daylight", "Shadow", "Cloudy", "Tungsten", "Fluorescent", "Flash"),
		),
		Section("capturesettings", "Capture Settings",
			Radio("autoexposuremode", "Canon Auto Exposure Mode", "Manual", "P", "TV", "AV", "Manual", "A_DEP"),
			Radio("focusmode", "Focus Mode", "One Shot", "One Shot", "AI Focus", "AI Servo"),
			Radio("aperture", "Aperture", "5.6", "4", "5.6", "8", "11", "13", "16", "22"),
			Radio("shutterspeed", "Shutter Speed", "1/60", "bulb", "1", "1/30", "1/60", "1/125", "1/250", "1/500"),
			Radio("exposurecompensation", "Exposure Compensation", "0", "-2", "-1", "0", "1", "2"),
			Range("zoom", "Zoom", 1, 1, 10, 0.5),
		),
	)
}
