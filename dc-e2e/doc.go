// Package e2e runs the DaoCloud contract against a local chain and table
// service. The tests need the compiled contract artifacts and a local-tableland
// install, and run only with DAOCLOUD_E2E=1 and DAOCLOUD_ARTIFACTS set.
package e2e
