package medialib

import (
	"path"
	"strconv"
	"strings"
)

const (
	tempSegment        = "temp"
	conversionsSegment = "conversions"
)

// TempKey is where a client uploads bytes before a media id exists.
// Layout: {collection or "temp"}/temp/{fileName}.
func TempKey(collection, fileName string) string {
	prefix := collection
	if prefix == "" {
		prefix = tempSegment
	}
	return prefix + "/" + tempSegment + "/" + fileName
}

// IsTempKey reports whether key lies in a temporary upload area.
func IsTempKey(key string) bool {
	if strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(key, tempSegment+"/") || strings.Contains(key, "/"+tempSegment+"/")
}

// OriginalKey is the permanent key of an original file: {mediaID}/{fileName}.
func OriginalKey(mediaID int64, fileName string) string {
	return strconv.FormatInt(mediaID, 10) + "/" + fileName
}

// ConversionKey is the permanent key of a derivative:
// {mediaID}/conversions/{fileNameWithoutExt}-{conversion}{ext}.
func ConversionKey(mediaID int64, fileName, conversion string) string {
	ext := path.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	return strconv.FormatInt(mediaID, 10) + "/" + conversionsSegment + "/" + base + "-" + conversion + ext
}
