package desc

import (
	"fmt"
	"sync"

	"github.com/goccy/go-reflect"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

var (
	// file cache key -> *Pool; each pool holds one file and its imports
	filePools sync.Map
	// Go type ID -> MessageDescriptor
	messagesByType sync.Map
	loadGroup      singleflight.Group
)

// LoadMessageDescriptorForMessage returns a descriptor for the type of the
// given message, which is usually a generated message. The returned handle
// belongs to a pool that contains the message's file and all of its
// transitive imports. Results are cached, so loading the same type again is
// cheap and returns an identical handle.
func LoadMessageDescriptorForMessage(msg proto.Message) (MessageDescriptor, error) {
	if _, ok := msg.(*dynamicpb.Message); ok {
		// every dynamicpb message has the same Go type
		return LoadMessageDescriptor(msg.ProtoReflect().Descriptor())
	}
	id := reflect.TypeID(msg)
	if md, ok := messagesByType.Load(id); ok {
		return md.(MessageDescriptor), nil
	}
	md, err := LoadMessageDescriptor(msg.ProtoReflect().Descriptor())
	if err != nil {
		return MessageDescriptor{}, err
	}
	messagesByType.Store(id, md)
	return md, nil
}

// LoadMessageDescriptor returns a descriptor that is equivalent to the given
// protoreflect descriptor. Pools are cached per file, so all messages from
// the same file share a pool.
func LoadMessageDescriptor(d protoreflect.MessageDescriptor) (MessageDescriptor, error) {
	pool, err := loadFilePool(d.ParentFile())
	if err != nil {
		return MessageDescriptor{}, err
	}
	md, ok := pool.FindMessageByName(string(d.FullName()))
	if !ok {
		return MessageDescriptor{}, fmt.Errorf("message %s not found in pool for %s", d.FullName(), d.ParentFile().Path())
	}
	return md, nil
}

// LoadFileDescriptor returns a descriptor that is equivalent to the given
// protoreflect file descriptor, such as one obtained from
// protoregistry.GlobalFiles.
func LoadFileDescriptor(fd protoreflect.FileDescriptor) (FileDescriptor, error) {
	pool, err := loadFilePool(fd)
	if err != nil {
		return FileDescriptor{}, err
	}
	f, _ := pool.FindFileByName(fd.Path())
	return f, nil
}

func loadFilePool(fd protoreflect.FileDescriptor) (*Pool, error) {
	key := fmt.Sprintf("%s@%p", fd.Path(), fd)
	if p, ok := filePools.Load(key); ok {
		return p.(*Pool), nil
	}
	p, err, _ := loadGroup.Do(key, func() (any, error) {
		if p, ok := filePools.Load(key); ok {
			return p, nil
		}
		fds := &descriptorpb.FileDescriptorSet{}
		addFileWithDeps(fd, fds, map[string]struct{}{})
		pool, err := BuildFromSet(fds)
		if err != nil {
			return nil, err
		}
		filePools.Store(key, pool)
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return p.(*Pool), nil
}

func addFileWithDeps(fd protoreflect.FileDescriptor, fds *descriptorpb.FileDescriptorSet, seen map[string]struct{}) {
	if _, ok := seen[fd.Path()]; ok {
		return
	}
	seen[fd.Path()] = struct{}{}
	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		addFileWithDeps(imports.Get(i).FileDescriptor, fds, seen)
	}
	fds.File = append(fds.File, protodesc.ToFileDescriptorProto(fd))
}
