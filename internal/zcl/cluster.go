package zcl

import "slices"

// Attribute access flags, combined in AttributeDef.Access.
const (
	AccessRead uint8 = 1 << iota
	AccessWrite
	AccessReport
)

// AttributeDef describes one attribute of a cluster.
type AttributeDef struct {
	ID     uint16 `json:"id"`
	Name   string `json:"name"`
	Type   uint8  `json:"type"`
	Access uint8  `json:"access"`
}

func (a AttributeDef) IsReadable() bool   { return a.Access&AccessRead != 0 }
func (a AttributeDef) IsWritable() bool   { return a.Access&AccessWrite != 0 }
func (a AttributeDef) IsReportable() bool { return a.Access&AccessReport != 0 }

// CommandDirection names the side of a cluster that receives a command.
type CommandDirection string

const (
	DirectionToServer CommandDirection = "toServer"
	DirectionToClient CommandDirection = "toClient"
)

// ReceivedBy returns the direction of commands received by the server side,
// or by the client side when server is false.
func ReceivedBy(server bool) CommandDirection {
	if server {
		return DirectionToServer
	}
	return DirectionToClient
}

// CommandDef describes a cluster-specific command.
type CommandDef struct {
	ID        uint8            `json:"id"`
	Name      string           `json:"name"`
	Direction CommandDirection `json:"direction"`
}

// ClusterDef is the static description of a cluster. Attribute IDs are
// unique; command IDs are unique per direction.
type ClusterDef struct {
	ID         uint16         `json:"id"`
	Name       string         `json:"name"`
	Attributes []AttributeDef `json:"attributes,omitempty"`
	Commands   []CommandDef   `json:"commands,omitempty"`
}

// FindAttribute returns the attribute with id, or nil.
func (c *ClusterDef) FindAttribute(id uint16) *AttributeDef {
	if i := slices.IndexFunc(c.Attributes, func(a AttributeDef) bool { return a.ID == id }); i >= 0 {
		return &c.Attributes[i]
	}
	return nil
}

// FindCommand returns the command with id travelling in dir, or nil.
func (c *ClusterDef) FindCommand(id uint8, dir CommandDirection) *CommandDef {
	i := slices.IndexFunc(c.Commands, func(cmd CommandDef) bool {
		return cmd.ID == id && cmd.Direction == dir
	})
	if i < 0 {
		return nil
	}
	return &c.Commands[i]
}

// Clone returns a copy that shares no slices with c.
func (c *ClusterDef) Clone() *ClusterDef {
	cp := *c
	cp.Attributes = slices.Clone(c.Attributes)
	cp.Commands = slices.Clone(c.Commands)
	return &cp
}

// Merge appends the attributes and commands of extra that c lacks. A name
// is taken from extra only when c has none.
func (c *ClusterDef) Merge(extra *ClusterDef) (added int) {
	if c.Name == "" {
		c.Name = extra.Name
	}
	for _, a := range extra.Attributes {
		if c.FindAttribute(a.ID) == nil {
			c.Attributes = append(c.Attributes, a)
			added++
		}
	}
	for _, cmd := range extra.Commands {
		if c.FindCommand(cmd.ID, cmd.Direction) == nil {
			c.Commands = append(c.Commands, cmd)
			added++
		}
	}
	return added
}
