// Package prototest compiles protobuf sources for use in tests.
package prototest

import (
	"context"
	"sort"
	"testing"

	"github.com/bufbuild/protocompile"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Compile compiles the given sources, keyed by file name, and returns a
// set holding the named files and all of their imports, each after its
// dependencies. The standard imports, such as google/protobuf/any.proto,
// are available without being included in sources. If no names are given,
// every file in sources is compiled.
func Compile(t testing.TB, sources map[string]string, names ...string) *descriptorpb.FileDescriptorSet {
	t.Helper()
	if len(names) == 0 {
		for name := range sources {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(sources),
		}),
	}
	files, err := compiler.Compile(context.Background(), names...)
	require.NoError(t, err)

	var fds descriptorpb.FileDescriptorSet
	seen := map[string]bool{}
	var add func(fd protoreflect.FileDescriptor)
	add = func(fd protoreflect.FileDescriptor) {
		if seen[fd.Path()] {
			return
		}
		seen[fd.Path()] = true
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			add(imports.Get(i).FileDescriptor)
		}
		fds.File = append(fds.File, protodesc.ToFileDescriptorProto(fd))
	}
	for _, fd := range files {
		add(fd)
	}
	return &fds
}

// CompileBytes is like Compile, but returns the serialized set.
func CompileBytes(t testing.TB, sources map[string]string, names ...string) []byte {
	t.Helper()
	b, err := proto.Marshal(Compile(t, sources, names...))
	require.NoError(t, err)
	return b
}

// Files links the set returned by Compile with the protobuf runtime, so
// that tests can compare against dynamicpb and protojson.
func Files(t testing.TB, fds *descriptorpb.FileDescriptorSet) *protoregistry.Files {
	t.Helper()
	files, err := protodesc.NewFiles(fds)
	require.NoError(t, err)
	return files
}
