package ot

import "encoding/binary"

// ScriptList is the top-level ScriptList table: a tag-sorted array of
// (scriptTag, offset) pairs, each pointing at a Script table.
type ScriptList struct {
	data    []byte
	base    int
	records []scriptRecord
}

type scriptRecord struct {
	tag    Tag
	offset uint16
}

// Script is a single Script table: a default language system plus a
// tag-sorted array of LangSys records.
type Script struct {
	data           []byte
	base           int
	defaultLangSys uint16
	langSysRecords []langSysRecord
}

type langSysRecord struct {
	tag    Tag
	offset uint16
}

// LangSys is a single LangSys table: a required feature index (0xFFFF
// if none) plus an ordered list of feature indices.
type LangSys struct {
	RequiredFeatureIndex uint16
	FeatureIndices       []uint16
}

const noRequiredFeature = 0xFFFF

// ParseScriptList parses the ScriptList table at the given offset into data.
func ParseScriptList(data []byte, offset int) (*ScriptList, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	count := int(binary.BigEndian.Uint16(data[offset:]))
	if offset+2+count*6 > len(data) {
		return nil, ErrInvalidOffset
	}

	records := make([]scriptRecord, count)
	for i := 0; i < count; i++ {
		recOff := offset + 2 + i*6
		records[i] = scriptRecord{
			tag:    Tag(binary.BigEndian.Uint32(data[recOff:])),
			offset: binary.BigEndian.Uint16(data[recOff+4:]),
		}
	}

	return &ScriptList{data: data, base: offset, records: records}, nil
}

// FindScript returns the Script table for tag, or nil if absent.
func (sl *ScriptList) FindScript(tag Tag) (*Script, error) {
	for _, rec := range sl.records {
		if rec.tag == tag {
			return parseScript(sl.data, sl.base+int(rec.offset))
		}
	}
	return nil, nil
}

// DefaultScript returns a script to fall back on when the caller's
// requested script tag is absent: 'DFLT', then 'dflt', then the first
// script declared in the list.
func (sl *ScriptList) DefaultScript() (*Script, error) {
	if s, err := sl.FindScript(MakeTag('D', 'F', 'L', 'T')); err != nil {
		return nil, err
	} else if s != nil {
		return s, nil
	}
	if s, err := sl.FindScript(MakeTag('d', 'f', 'l', 't')); err != nil {
		return nil, err
	} else if s != nil {
		return s, nil
	}
	if len(sl.records) == 0 {
		return nil, nil
	}
	return parseScript(sl.data, sl.base+int(sl.records[0].offset))
}

func parseScript(data []byte, offset int) (*Script, error) {
	if offset+4 > len(data) {
		return nil, ErrInvalidOffset
	}
	defaultLangSys := binary.BigEndian.Uint16(data[offset:])
	count := int(binary.BigEndian.Uint16(data[offset+2:]))
	if offset+4+count*6 > len(data) {
		return nil, ErrInvalidOffset
	}

	records := make([]langSysRecord, count)
	for i := 0; i < count; i++ {
		recOff := offset + 4 + i*6
		records[i] = langSysRecord{
			tag:    Tag(binary.BigEndian.Uint32(data[recOff:])),
			offset: binary.BigEndian.Uint16(data[recOff+4:]),
		}
	}

	return &Script{data: data, base: offset, defaultLangSys: defaultLangSys, langSysRecords: records}, nil
}

// FindLangSys returns the LangSys table for tag, falling back to the
// script's default language system when tag is absent or empty.
func (s *Script) FindLangSys(tag Tag) (*LangSys, error) {
	if tag != 0 {
		for _, rec := range s.langSysRecords {
			if rec.tag == tag {
				return parseLangSys(s.data, s.base+int(rec.offset))
			}
		}
	}
	if s.defaultLangSys == 0 {
		return nil, nil
	}
	return parseLangSys(s.data, s.base+int(s.defaultLangSys))
}

func parseLangSys(data []byte, offset int) (*LangSys, error) {
	if offset+4 > len(data) {
		return nil, ErrInvalidOffset
	}
	// byte 0-1: lookupOrder offset, reserved/unused.
	required := binary.BigEndian.Uint16(data[offset+2:])
	count := int(binary.BigEndian.Uint16(data[offset+4:]))
	if offset+6+count*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	indices := make([]uint16, count)
	for i := 0; i < count; i++ {
		indices[i] = binary.BigEndian.Uint16(data[offset+6+i*2:])
	}

	return &LangSys{RequiredFeatureIndex: required, FeatureIndices: indices}, nil
}

// ResolveLookups resolves script/lang/feature selection to an ordered
// list of lookup indices: the required feature (if any) followed by
// every FeatureList record that the language system lists and whose tag
// was requested, each expanded to its lookupListIndex array, in the
// font's declared lookup order within a feature and the FeatureList's
// order across features (the order of the features argument does not
// affect the result). Duplicate lookup indices are preserved verbatim;
// the engine is responsible for any de-duplication it needs.
func ResolveLookups(sl *ScriptList, fl *FeatureList, scriptTag, langTag Tag, features []Tag) ([]uint16, error) {
	script, err := sl.FindScript(scriptTag)
	if err != nil {
		return nil, err
	}
	if script == nil {
		script, err = sl.DefaultScript()
		if err != nil {
			return nil, err
		}
	}
	if script == nil {
		return nil, nil
	}

	langSys, err := script.FindLangSys(langTag)
	if err != nil {
		return nil, err
	}
	if langSys == nil {
		return nil, nil
	}

	var lookups []uint16

	if langSys.RequiredFeatureIndex != noRequiredFeature {
		rec, err := fl.GetFeature(int(langSys.RequiredFeatureIndex))
		if err == nil && rec != nil {
			lookups = append(lookups, rec.Lookups...)
		}
	}

	requested := make(map[Tag]bool, len(features))
	for _, tag := range features {
		requested[tag] = true
	}
	for idx := 0; idx < fl.Count(); idx++ {
		if !inFeatureIndices(langSys.FeatureIndices, uint16(idx)) {
			continue
		}
		rec, err := fl.GetFeature(idx)
		if err != nil || rec == nil || !requested[rec.Tag] {
			continue
		}
		lookups = append(lookups, rec.Lookups...)
	}

	return lookups, nil
}

// inFeatureIndices reports whether idx is among the feature indices a
// LangSys declares; a requested feature tag only applies if the language
// system actually lists it, even when the tag exists elsewhere in the
// font's FeatureList.
func inFeatureIndices(indices []uint16, idx uint16) bool {
	for _, i := range indices {
		if i == idx {
			return true
		}
	}
	return false
}
