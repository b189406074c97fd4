// Package health reports whether a satauth deployment can serve sign-ins.
//
// A Checker inspects one component and returns a Result whose Status is
// Healthy, Degraded or Unhealthy. The built-in checkers cover the
// persisted session ([SessionChecker]), the session storage
// ([StorageChecker]) and the satellite host ([SatelliteChecker]).
//
// An Aggregator runs registered checkers concurrently under one deadline
// and folds their results into an overall status:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewStorageChecker(store))
//	agg.Register(health.NewSessionChecker(store, 5*time.Minute))
//	agg.Register(health.NewSatelliteChecker(target.Host(), nil))
//
//	r := chi.NewRouter()
//	health.Mount(r, agg)
//
// Mount serves /healthz (liveness), /readyz (readiness), /health (every
// check as JSON) and /health/{name} (one check).
package health
