// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🗂️ RemoteType is one of the backend kinds a remote can be created with
type RemoteType string

const (
	RemoteAzureBlob RemoteType = "azureblob"
	RemoteB2        RemoteType = "b2"
	RemoteBox       RemoteType = "box"
	RemoteDrive     RemoteType = "drive"
	RemoteDropbox   RemoteType = "dropbox"
	RemoteFTP       RemoteType = "ftp"
	RemoteGCS       RemoteType = "google cloud storage"
	RemoteLocal     RemoteType = "local"
	RemoteMega      RemoteType = "mega"
	RemoteOneDrive  RemoteType = "onedrive"
	RemotePCloud    RemoteType = "pcloud"
	RemoteS3        RemoteType = "s3"
	RemoteSFTP      RemoteType = "sftp"
	RemoteSMB       RemoteType = "smb"
	RemoteSwift     RemoteType = "swift"
	RemoteWebDAV    RemoteType = "webdav"
)

// remoteTypes maps every accepted spelling to its backend kind.
var remoteTypes = map[string]RemoteType{
	"azureblob": RemoteAzureBlob,
	"b2":        RemoteB2,
	"box":       RemoteBox,
	"drive":     RemoteDrive,
	"dropbox":   RemoteDropbox,
	"ftp":       RemoteFTP,
	"gcs":       RemoteGCS,
	"local":     RemoteLocal,
	"mega":      RemoteMega,
	"onedrive":  RemoteOneDrive,
	"pcloud":    RemotePCloud,
	"s3":        RemoteS3,
	"sftp":      RemoteSFTP,
	"smb":       RemoteSMB,
	"swift":     RemoteSwift,
	"webdav":    RemoteWebDAV,
}

func (t RemoteType) String() string { return string(t) }

// 🔍 ParseRemoteType resolves a configured type name, ignoring case.
func ParseRemoteType(s string) (RemoteType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := remoteTypes[key]; ok {
		return t, nil
	}
	if key == string(RemoteGCS) {
		return RemoteGCS, nil
	}
	return "", errors.Errorf("unsupported remote type %q, options: %s", s, strings.Join(RemoteTypeNames(), ", "))
}

// RemoteTypeNames lists the accepted type names in sorted order.
func RemoteTypeNames() []string {
	names := make([]string, 0, len(remoteTypes))
	for k := range remoteTypes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
