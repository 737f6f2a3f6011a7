// Package reader opens package files and materialises the objects they
// export.
//
// A [Manager] maps package names to files below a game directory and
// owns every [Package] it opens:
//
//	m, err := reader.New("/games/unreal", reader.WithNatives(natives.Register))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	if _, err := m.ScanDefaultFolders(); err != nil {
//	    log.Fatal(err)
//	}
//	pkg, err := m.GetPackage("Engine")
//
// # Tables
//
// A Package reads its header and its name, import and export tables when
// it is first requested. Names keep their case but are looked up
// ignoring it.
//
// # Object Resolution
//
// Objects are created lazily and at most once per export:
//
//   - GetUObject(ref) - resolve an export or import reference
//   - LoadExportObject(index) - instantiate export index
//   - FindObjectReference(class, name, group) - find an export by name
//   - OpenObjectStream(index, class) - read an export's payload
//
// The implementation of an export is found by walking its class chain,
// possibly through other packages, until a native factory is registered
// for one of its classes. Imports are resolved in the package they name.
//
// # Native Classes
//
// Each package has its own registry of native factories, filled by the
// hook given with [WithNatives] when the package is opened, or later with
// [Package.RegisterNativeClass].
//
// # Post-load Processing
//
// Objects implementing object.PostLoader are queued while loading and
// processed once, after the outermost load has finished, so that all
// objects they refer to exist. If that load or a PostLoad fails, the
// objects still waiting are marked failed and every later lookup of them
// returns the error.
//
// # Concurrency
//
// Public methods of Manager and Package serialise on one lock. Object
// deserialisers run under that lock and must resolve references through
// the stream they are given, never through the public methods.
package reader
