// Package config loads the satauth configuration from the environment.
//
// Variables carry the SATAUTH_ prefix. A .env file in the working
// directory is loaded first when present; variables already set in the
// process win over it. String settings may reference other variables with
// ${VAR} or a secret with secretref:<provider>:<ref> (see package secret).
//
//	SATAUTH_SATELLITE_ID=jx5yt-yyaaa-aaaal-abzbq-cai
//	SATAUTH_CONTAINER=http://127.0.0.1:5987
//	SATAUTH_GOOGLE_CLIENT_ID=secretref:env:GOOGLE_OAUTH_CLIENT_ID
//	SATAUTH_STORAGE=bbolt
//	SATAUTH_BOLT_PATH=${HOME}/.satauth/session.db
package config
