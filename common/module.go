package common

type Module string

const (
	ModuleExplorer Module = "explorer"
)

func (m Module) String() string {
	return string(m)
}
