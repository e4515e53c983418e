// SPDX-License-Identifier: MPL-2.0

package state

// AppBasePath returns the localized repository directory.
func (s *Store) AppBasePath() string { return s.record.AppBasePath }

// SourceRepository returns the original repository location.
func (s *Store) SourceRepository() string { return s.record.SourceRepository }

// AppRegistryID returns the catalog identifier, nil before registration.
func (s *Store) AppRegistryID() *string { return clonePtr(s.record.AppRegistryID) }

// CWLOutputPath returns the artifact directory.
func (s *Store) CWLOutputPath() *string { return clonePtr(s.record.CWLOutputPath) }

// DockerImageReference returns the local image reference, nil before a build.
func (s *Store) DockerImageReference() *string { return clonePtr(s.record.DockerImageReference) }

// DockerImageRepository returns the repository part of the built image.
func (s *Store) DockerImageRepository() *string { return clonePtr(s.record.DockerImageRepository) }

// DockerImageTag returns the tag part of the built image.
func (s *Store) DockerImageTag() *string { return clonePtr(s.record.DockerImageTag) }

// DockerImageNamespace returns the namespace part of the built image.
func (s *Store) DockerImageNamespace() *string { return clonePtr(s.record.DockerImageNamespace) }

// DockerURL returns the remote image reference, nil before a push.
func (s *Store) DockerURL() *string { return clonePtr(s.record.DockerURL) }

// SetAppRegistryID stores the catalog identifier.
func (s *Store) SetAppRegistryID(id string) error { return s.Set(FieldAppRegistryID, &id) }

// SetCWLOutputPath stores the artifact directory.
func (s *Store) SetCWLOutputPath(dir string) error { return s.Set(FieldCWLOutputPath, &dir) }

// SetDockerURL stores the remote image reference.
func (s *Store) SetDockerURL(url string) error { return s.Set(FieldDockerURL, &url) }

// RecordImage stores the four parts of a built image in a single write.
func (s *Store) RecordImage(namespace, repository, tag, reference string) error {
	return s.commit(func(r *Record) {
		r.DockerImageNamespace = &namespace
		r.DockerImageRepository = &repository
		r.DockerImageTag = &tag
		r.DockerImageReference = &reference
	})
}

// SetDockerImageNamespace stores the namespace part of the built image.
func (s *Store) SetDockerImageNamespace(namespace string) error {
	return s.Set(FieldDockerImageNamespace, &namespace)
}

// SetDockerImageRepository stores the repository part of the built image.
func (s *Store) SetDockerImageRepository(repository string) error {
	return s.Set(FieldDockerImageRepository, &repository)
}

// SetDockerImageTag stores the tag part of the built image.
func (s *Store) SetDockerImageTag(tag string) error { return s.Set(FieldDockerImageTag, &tag) }

// SetDockerImageReference stores the local image reference.
func (s *Store) SetDockerImageReference(reference string) error {
	return s.Set(FieldDockerImageReference, &reference)
}
