package core

import "strings"

// ObjectFlags is the per-export flag word.
type ObjectFlags uint32

const (
	FlagTransactional  ObjectFlags = 0x00000001
	FlagUnreachable    ObjectFlags = 0x00000002
	FlagPublic         ObjectFlags = 0x00000004
	FlagTagImp         ObjectFlags = 0x00000008
	FlagTagExp         ObjectFlags = 0x00000010
	FlagSourceModified ObjectFlags = 0x00000020
	FlagTagGarbage     ObjectFlags = 0x00000040
	FlagNeedLoad       ObjectFlags = 0x00000200
	FlagHighlighted    ObjectFlags = 0x00000400
	FlagSuppress       ObjectFlags = 0x00000800
	FlagInEndState     ObjectFlags = 0x00001000
	FlagTransient      ObjectFlags = 0x00004000
	FlagPreloading     ObjectFlags = 0x00008000
	FlagLoadForClient  ObjectFlags = 0x00010000
	FlagLoadForServer  ObjectFlags = 0x00020000
	FlagLoadForEdit    ObjectFlags = 0x00040000
	FlagStandalone     ObjectFlags = 0x00080000
	FlagNotForClient   ObjectFlags = 0x00100000
	FlagNotForServer   ObjectFlags = 0x00200000
	FlagNotForEdit     ObjectFlags = 0x00400000
	FlagDestroyed      ObjectFlags = 0x00800000
	FlagNeedPostLoad   ObjectFlags = 0x01000000
	FlagHasStack       ObjectFlags = 0x02000000
	FlagNative         ObjectFlags = 0x04000000
	FlagMarked         ObjectFlags = 0x08000000
	FlagErrorShutdown  ObjectFlags = 0x10000000
	FlagDebugPostLoad  ObjectFlags = 0x20000000
	FlagDebugSerialize ObjectFlags = 0x40000000
	FlagDebugDestroy   ObjectFlags = 0x80000000
)

var objectFlagNames = []struct {
	flag ObjectFlags
	name string
}{
	{FlagTransactional, "Transactional"},
	{FlagUnreachable, "Unreachable"},
	{FlagPublic, "Public"},
	{FlagTagImp, "TagImp"},
	{FlagTagExp, "TagExp"},
	{FlagSourceModified, "SourceModified"},
	{FlagTagGarbage, "TagGarbage"},
	{FlagNeedLoad, "NeedLoad"},
	{FlagHighlighted, "Highlighted"},
	{FlagSuppress, "Suppress"},
	{FlagInEndState, "InEndState"},
	{FlagTransient, "Transient"},
	{FlagPreloading, "Preloading"},
	{FlagLoadForClient, "LoadForClient"},
	{FlagLoadForServer, "LoadForServer"},
	{FlagLoadForEdit, "LoadForEdit"},
	{FlagStandalone, "Standalone"},
	{FlagNotForClient, "NotForClient"},
	{FlagNotForServer, "NotForServer"},
	{FlagNotForEdit, "NotForEdit"},
	{FlagDestroyed, "Destroyed"},
	{FlagNeedPostLoad, "NeedPostLoad"},
	{FlagHasStack, "HasStack"},
	{FlagNative, "Native"},
	{FlagMarked, "Marked"},
	{FlagErrorShutdown, "ErrorShutdown"},
	{FlagDebugPostLoad, "DebugPostLoad"},
	{FlagDebugSerialize, "DebugSerialize"},
	{FlagDebugDestroy, "DebugDestroy"},
}

// Has reports whether every bit of f2 is set in f.
func (f ObjectFlags) Has(f2 ObjectFlags) bool { return f&f2 == f2 }

// String lists the set flags separated by '|'.
func (f ObjectFlags) String() string {
	var parts []string
	for _, n := range objectFlagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// PackageFlags is the package-level flag word from the header.
type PackageFlags uint32

const (
	PackageAllowDownload  PackageFlags = 0x0001
	PackageClientOptional PackageFlags = 0x0002
	PackageServerSideOnly PackageFlags = 0x0004
	PackageBrokenLinks    PackageFlags = 0x0008
	PackageUnsecure       PackageFlags = 0x0010
	PackageNeed           PackageFlags = 0x8000
)

// Has reports whether every bit of f2 is set in f.
func (f PackageFlags) Has(f2 PackageFlags) bool { return f&f2 == f2 }

// String lists the set flags separated by '|'.
func (f PackageFlags) String() string {
	var parts []string
	for _, n := range []struct {
		flag PackageFlags
		name string
	}{
		{PackageAllowDownload, "AllowDownload"},
		{PackageClientOptional, "ClientOptional"},
		{PackageServerSideOnly, "ServerSideOnly"},
		{PackageBrokenLinks, "BrokenLinks"},
		{PackageUnsecure, "Unsecure"},
		{PackageNeed, "Need"},
	} {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}
