package project

import "fmt"

// Project bundles live state with the file it was loaded from.
type Project struct {
	Path     string
	Registry *Registry
	Timeline *Timeline
	Settings Settings
}

// New returns an empty project with default settings.
func New(path string) *Project {
	return &Project{
		Path:     path,
		Registry: NewRegistry(),
		Timeline: NewTimeline(),
		Settings: DefaultSettings(),
	}
}

// Open loads the project document at path.
func Open(path string) (*Project, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	reg, tl, settings, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Project{Path: path, Registry: reg, Timeline: tl, Settings: settings}, nil
}

// Document captures the project as a save document.
func (p *Project) Document() *Document {
	return ToDocument(p.Registry, p.Timeline, p.Settings)
}

// Save writes the project back to its path.
func (p *Project) Save() error {
	if p.Path == "" {
		return fmt.Errorf("save project: no path")
	}
	return p.Document().Store(p.Path)
}
