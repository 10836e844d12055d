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

package config

// 🔑 Recognised configuration keys. Keys are matched after lowercasing.
const (
	KeyRemoteName      = "remote_name"
	KeyRemoteType      = "remote_type"
	KeyRemotePath      = "remote_path"
	KeyLocalPath       = "local_path"
	KeyKeyFile         = "key_file"
	KeyHost            = "host"
	KeyUser            = "user"
	KeyMountDevice     = "mount_device"
	KeyMountPoint      = "mount_point"
	KeyMountPointAlias = "mountpoint"
	KeyBackupDir       = "backup_dir"
	KeyExclude         = "exclude"
	KeyBwLimit         = "bwlimit"
	KeySuffix          = "suffix"
	KeyDryRun          = "dry_run"
	KeyIgnoreExisting  = "ignore_existing"
	KeyExtraArgs       = "extra_rclone_args"
	KeyRemoteLogPath   = "remote_log_path"
	KeyLogPath         = "log_path"
	KeyLogFileName     = "log_file_name"
	KeyMaxLogFiles     = "max_log_files"
	KeyLogLevel        = "log_level"

	KeyRemotePolicy     = "remote_policy"
	KeyOnTransferError  = "on_transfer_error"
	KeyOnProvisionError = "on_provision_error"
)

// Accepted values for the policy keys.
const (
	RemotePolicyReuse    = "reuse"
	RemotePolicyRecreate = "recreate"

	OnTransferErrorAbort    = "abort"
	OnTransferErrorContinue = "continue"

	OnProvisionErrorCleanup = "cleanup"
	OnProvisionErrorAbort   = "abort"
)

// DefaultMaxLogFiles is how many run logs are kept in the log directory.
const DefaultMaxLogFiles = 100

// RequiredKeys must be present and non-empty in every run configuration.
var RequiredKeys = []string{
	KeyRemoteName,
	KeyRemoteType,
	KeyRemotePath,
	KeyLocalPath,
	KeyKeyFile,
	KeyHost,
	KeyUser,
}

var knownKeys = map[string]bool{
	KeyRemoteName: true, KeyRemoteType: true, KeyRemotePath: true, KeyLocalPath: true,
	KeyKeyFile: true, KeyHost: true, KeyUser: true, KeyMountDevice: true,
	KeyMountPoint: true, KeyMountPointAlias: true, KeyBackupDir: true, KeyExclude: true,
	KeyBwLimit: true, KeySuffix: true, KeyDryRun: true, KeyIgnoreExisting: true,
	KeyExtraArgs: true, KeyRemoteLogPath: true, KeyLogPath: true, KeyLogFileName: true,
	KeyMaxLogFiles: true, KeyLogLevel: true, KeyRemotePolicy: true,
	KeyOnTransferError: true, KeyOnProvisionError: true,
}

