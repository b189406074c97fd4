// Package secret resolves configuration values that may reference secrets.
//
// Values are first expanded against the environment (see ExpandEnvStrict),
// then any "secretref:<provider>:<ref>" reference is replaced by the value
// the named provider returns:
//
//	SATAUTH_GOOGLE_CLIENT_ID=secretref:env:GOOGLE_OAUTH_CLIENT_ID
//	SATAUTH_GITHUB_CLIENT_ID=secretref:file:/run/secrets/github_client_id
//	SATAUTH_REDIS_URL=redis://:secretref:dotenv:REDIS_PASSWORD@localhost:6379/0
//
// The env, file and dotenv providers are built in; NewDefaultRegistry
// registers them.
package secret
