package desc

import (
	"google.golang.org/protobuf/types/descriptorpb"
)

// features is the resolved subset of google.protobuf.FeatureSet that affects
// encoding. Proto2 and proto3 files are mapped onto the equivalent feature
// values so that all encoding decisions go through one code path.
type features struct {
	presence descriptorpb.FeatureSet_FieldPresence
	enumType descriptorpb.FeatureSet_EnumType
	repeated descriptorpb.FeatureSet_RepeatedFieldEncoding
	utf8     descriptorpb.FeatureSet_Utf8Validation
	encoding descriptorpb.FeatureSet_MessageEncoding
}

func syntaxDefaults(syntax Syntax) features {
	switch syntax {
	case Proto2:
		return features{
			presence: descriptorpb.FeatureSet_EXPLICIT,
			enumType: descriptorpb.FeatureSet_CLOSED,
			repeated: descriptorpb.FeatureSet_EXPANDED,
			utf8:     descriptorpb.FeatureSet_NONE,
			encoding: descriptorpb.FeatureSet_LENGTH_PREFIXED,
		}
	case Proto3:
		return features{
			presence: descriptorpb.FeatureSet_IMPLICIT,
			enumType: descriptorpb.FeatureSet_OPEN,
			repeated: descriptorpb.FeatureSet_PACKED,
			utf8:     descriptorpb.FeatureSet_VERIFY,
			encoding: descriptorpb.FeatureSet_LENGTH_PREFIXED,
		}
	default:
		// edition 2023 and later
		return features{
			presence: descriptorpb.FeatureSet_EXPLICIT,
			enumType: descriptorpb.FeatureSet_OPEN,
			repeated: descriptorpb.FeatureSet_PACKED,
			utf8:     descriptorpb.FeatureSet_VERIFY,
			encoding: descriptorpb.FeatureSet_LENGTH_PREFIXED,
		}
	}
}

// merge overlays any explicitly set values in fs. Unset values (the zero
// "unknown" enum constants) leave the inherited value in place.
func (f features) merge(fs *descriptorpb.FeatureSet) features {
	if fs == nil {
		return f
	}
	if v := fs.GetFieldPresence(); v != descriptorpb.FeatureSet_FIELD_PRESENCE_UNKNOWN {
		f.presence = v
	}
	if v := fs.GetEnumType(); v != descriptorpb.FeatureSet_ENUM_TYPE_UNKNOWN {
		f.enumType = v
	}
	if v := fs.GetRepeatedFieldEncoding(); v != descriptorpb.FeatureSet_REPEATED_FIELD_ENCODING_UNKNOWN {
		f.repeated = v
	}
	if v := fs.GetUtf8Validation(); v != descriptorpb.FeatureSet_UTF8_VALIDATION_UNKNOWN {
		f.utf8 = v
	}
	if v := fs.GetMessageEncoding(); v != descriptorpb.FeatureSet_MESSAGE_ENCODING_UNKNOWN {
		f.encoding = v
	}
	return f
}
